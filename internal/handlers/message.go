package handlers

import (
	"net/http"
	"time"

	"zynexhub/internal/apierr"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"
	"zynexhub/internal/utils"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *services.MessageService
	max      int
}

func NewMessageHandler(messages *services.MessageService, max int) *MessageHandler {
	return &MessageHandler{messages: messages, max: max}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Conversations 会话列表, 最近联系的在前
func (h *MessageHandler) Conversations(c *gin.Context) {
	limit := utils.ClampLimit(c.Query("limit"), h.max, h.max)

	list, err := h.messages.Conversations(c.Request.Context(), middleware.CurrentCaller(c), limit)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), middleware.CurrentCaller(c))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// List ?before=<RFC3339>&limit=N, 按时间正序返回
func (h *MessageHandler) List(c *gin.Context) {
	peerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}
	limit := utils.ClampLimit(c.Query("limit"), h.max, h.max)

	list, err := h.messages.Messages(c.Request.Context(), middleware.CurrentCaller(c), peerID, before, limit)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *MessageHandler) Send(c *gin.Context) {
	peerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.CurrentCaller(c), peerID, req.Content)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Read(c *gin.Context) {
	peerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), middleware.CurrentCaller(c), peerID)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
