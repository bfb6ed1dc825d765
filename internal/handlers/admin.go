package handlers

import (
	"net/http"

	"zynexhub/internal/apierr"
	"zynexhub/internal/middleware"
	"zynexhub/internal/models"
	"zynexhub/internal/services"
	"zynexhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the moderation queue. Routes are mounted behind
// middleware.RequireModerator; the service checks the role again.
type AdminHandler struct {
	moderation *services.ModerationService
}

func NewAdminHandler(moderation *services.ModerationService) *AdminHandler {
	return &AdminHandler{moderation: moderation}
}

type updateReportRequest struct {
	Status string `json:"status"`
}

type removeCommentsRequest struct {
	CommentIDs []uuid.UUID `json:"comment_ids"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// ListReports ?status=pending&limit=N
func (h *AdminHandler) ListReports(c *gin.Context) {
	status := models.ReportStatus(c.Query("status"))
	limit := utils.StringToInt(c.Query("limit"))

	reports, err := h.moderation.ListReports(c.Request.Context(), middleware.CurrentCaller(c), status, limit)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *AdminHandler) UpdateReport(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.moderation.UpdateReportStatus(c.Request.Context(), middleware.CurrentCaller(c), id,
		models.ReportStatus(req.Status))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RemoveComments 批量删除评论
func (h *AdminHandler) RemoveComments(c *gin.Context) {
	var req removeCommentsRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.moderation.RemoveComments(c.Request.Context(), middleware.CurrentCaller(c), req.CommentIDs)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.moderation.SetUserStatus(c.Request.Context(), middleware.CurrentCaller(c), id,
		models.ProfileStatus(req.Status))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AdminHandler) UserStats(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.moderation.UserStats(c.Request.Context(), middleware.CurrentCaller(c), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
