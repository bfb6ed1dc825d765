package router

import (
	"net/http"
	"sync/atomic"
	"time"

	"zynexhub/internal/config"
	"zynexhub/internal/handlers"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Services  *services.Services
	Hub       *services.Hub
	Inbox     *services.Inbox
	Auth      *middleware.Auth
	Limiter   *middleware.RateLimiter
	Limits    config.LimitsConfig
	Ready     *atomic.Bool
	Metrics   http.Handler
	Heartbeat time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	healthHandler := handlers.NewHealthHandler(d.DB, d.Ready)
	postHandler := handlers.NewPostHandler(d.Services.Posts, d.Limits)
	commentHandler := handlers.NewCommentHandler(d.Services.Comments)
	voteHandler := handlers.NewVoteHandler(d.Services.Comments, d.Services.Moderation)
	notificationHandler := handlers.NewNotificationHandler(d.Services.Notifications, d.Limits.NotificationsMax)
	adminHandler := handlers.NewAdminHandler(d.Services.Moderation)
	messageHandler := handlers.NewMessageHandler(d.Services.Messages, d.Limits.MessagesPageMax)
	storyHandler := handlers.NewStoryHandler(d.Services.Stories)
	streamHandler := handlers.NewStreamHandler(d.Services.Posts, d.Hub, d.Inbox, d.Heartbeat)

	// 探针 (Probes)
	r.GET("/livez", healthHandler.Livez)
	r.GET("/healthz", healthHandler.Healthz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	api := r.Group("/api/v1")

	// 公共路由, 带 token 时识别用户 (Public Routes)
	public := api.Group("")
	public.Use(d.Auth.LoadCaller())
	{
		public.GET("/posts", postHandler.Feed)                           // 帖子列表 new/hot
		public.GET("/posts/:id", postHandler.Get)                        // 帖子详情
		public.GET("/posts/:id/comments", commentHandler.Thread)         // 评论树
		public.GET("/posts/:id/comments/stream", streamHandler.Comments) // 评论实时推送 (SSE)
		public.GET("/stories", storyHandler.Active)                      // 未过期的 story
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(d.Auth.AuthRequired())
	{
		authorized.GET("/notifications", notificationHandler.List)                     // 我的通知
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount) // 未读数
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)        // 全部已读
		authorized.POST("/notifications/:id/read", notificationHandler.Read)           // 单条已读
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)            // 删除通知

		authorized.GET("/conversations", messageHandler.Conversations)            // 私信会话列表
		authorized.GET("/conversations/unread-count", messageHandler.UnreadCount) // 私信未读数
		authorized.GET("/conversations/stream", streamHandler.Messages)           // 私信实时推送 (SSE)
		authorized.GET("/conversations/:id/messages", messageHandler.List)        // 聊天记录
		authorized.POST("/conversations/:id/read", messageHandler.Read)           // 标记已读
		authorized.POST("/stories/:id/view", storyHandler.View)                   // 记录浏览
	}

	// 写操作限流 (Rate-limited writes)
	writes := api.Group("")
	writes.Use(d.Auth.AuthRequired(), d.Limiter.Middleware())
	{
		writes.POST("/posts", postHandler.Create)                       // 发帖
		writes.DELETE("/posts/:id", postHandler.Delete)                 // 删帖
		writes.POST("/posts/:id/like", postHandler.ToggleLike)          // 点赞/取消
		writes.POST("/posts/:id/comments", commentHandler.Create)       // 发表评论/回复
		writes.PATCH("/comments/:id", commentHandler.Edit)              // 编辑评论
		writes.DELETE("/comments/:id", commentHandler.Delete)           // 删除评论
		writes.POST("/comments/:id/vote", voteHandler.Vote)             // 顶/踩
		writes.POST("/comments/:id/reports", voteHandler.Report)        // 举报
		writes.POST("/conversations/:id/messages", messageHandler.Send) // 发私信
		writes.POST("/stories", storyHandler.Create)                    // 发 story
		writes.DELETE("/stories/:id", storyHandler.Delete)              // 删 story
	}

	// 管理路由 (Moderation Routes)
	moderation := api.Group("/moderation")
	moderation.Use(d.Auth.AuthRequired(), middleware.RequireModerator())
	{
		moderation.GET("/reports", adminHandler.ListReports)             // 举报列表
		moderation.PATCH("/reports/:id", adminHandler.UpdateReport)      // 处理举报
		moderation.POST("/comments/remove", adminHandler.RemoveComments) // 批量删除评论
		moderation.PUT("/users/:id/status", adminHandler.SetUserStatus)  // 禁言/封禁
		moderation.GET("/users/:id/stats", adminHandler.UserStats)       // 用户统计
	}
}
