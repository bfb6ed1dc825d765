package handlers

import (
	"net/http"

	"zynexhub/internal/apierr"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type createCommentRequest struct {
	Content  string     `json:"content"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type editCommentRequest struct {
	Content string `json:"content"`
}

// Thread returns the post's comments as a reply tree.
func (h *CommentHandler) Thread(c *gin.Context) {
	postID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	nodes, err := h.comments.Thread(c.Request.Context(), middleware.CurrentCaller(c), postID)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": nodes})
}

func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), middleware.CurrentCaller(c), postID, req.ParentID, req.Content)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) Edit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req editCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Edit(c.Request.Context(), middleware.CurrentCaller(c), id, req.Content)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	comment, err := h.comments.Delete(c.Request.Context(), middleware.CurrentCaller(c), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
