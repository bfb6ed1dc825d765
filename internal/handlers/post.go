package handlers

import (
	"net/http"
	"time"

	"zynexhub/internal/apierr"
	"zynexhub/internal/config"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"
	"zynexhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PostHandler struct {
	posts  *services.PostService
	limits config.LimitsConfig
}

func NewPostHandler(posts *services.PostService, limits config.LimitsConfig) *PostHandler {
	return &PostHandler{posts: posts, limits: limits}
}

type createPostRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.posts.Create(c.Request.Context(), middleware.CurrentCaller(c), req.Content, req.ImageURL)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Feed 首页列表: ?sort=new|hot&before=<RFC3339>&before_id=<uuid>&limit=N
// next_before 和 next_id 一起作为下一页的游标
func (h *PostHandler) Feed(c *gin.Context) {
	q := services.FeedQuery{
		Sort:  c.DefaultQuery("sort", services.SortNew),
		Limit: utils.ClampLimit(c.Query("limit"), h.limits.FeedDefault, h.limits.FeedMax),
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "before must be an RFC 3339 timestamp")
			return
		}
		q.Before = &before
	}
	if raw := c.Query("before_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || q.Before == nil {
			apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "before_id must be a UUID and needs before")
			return
		}
		q.BeforeID = &id
	}

	posts, err := h.posts.Feed(c.Request.Context(), middleware.CurrentCaller(c), q)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	resp := gin.H{"posts": posts}
	if q.Sort == services.SortNew && len(posts) == q.Limit {
		last := posts[len(posts)-1]
		resp["next_before"] = last.CreatedAt.Format(time.RFC3339Nano)
		resp["next_id"] = last.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	post, err := h.posts.Get(c.Request.Context(), middleware.CurrentCaller(c), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.posts.ToggleLike(c.Request.Context(), middleware.CurrentCaller(c), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), middleware.CurrentCaller(c), id); err != nil {
		apierr.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
