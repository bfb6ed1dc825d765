package handlers

import (
	"net/http"

	"zynexhub/internal/apierr"
	"zynexhub/internal/middleware"
	"zynexhub/internal/models"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	comments   *services.CommentService
	moderation *services.ModerationService
}

func NewVoteHandler(comments *services.CommentService, moderation *services.ModerationService) *VoteHandler {
	return &VoteHandler{comments: comments, moderation: moderation}
}

type voteRequest struct {
	Direction string `json:"direction"`
}

type reportRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// Vote 顶/踩, 重复同方向即取消
func (h *VoteHandler) Vote(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	direction, ok := models.ParseVoteType(req.Direction)
	if !ok {
		apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "direction must be up or down")
		return
	}

	result, err := h.comments.Vote(c.Request.Context(), middleware.CurrentCaller(c), id, direction)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Report files a moderation report against a comment.
func (h *VoteHandler) Report(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.moderation.Submit(c.Request.Context(), middleware.CurrentCaller(c), id,
		models.ReportReason(req.Reason), req.Description)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
