package handlers

import (
	"net/http"

	"zynexhub/internal/apierr"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	stories *services.StoryService
}

func NewStoryHandler(stories *services.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

type createStoryRequest struct {
	MediaURL string  `json:"media_url"`
	Caption  *string `json:"caption"`
}

func (h *StoryHandler) Create(c *gin.Context) {
	var req createStoryRequest
	if !bindJSON(c, &req) {
		return
	}

	story, err := h.stories.Create(c.Request.Context(), middleware.CurrentCaller(c), req.MediaURL, req.Caption)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

// Active 按作者分组的未过期 story
func (h *StoryHandler) Active(c *gin.Context) {
	groups, err := h.stories.Active(c.Request.Context(), middleware.CurrentCaller(c))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": groups})
}

func (h *StoryHandler) View(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.stories.View(c.Request.Context(), middleware.CurrentCaller(c), id); err != nil {
		apierr.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.stories.Delete(c.Request.Context(), middleware.CurrentCaller(c), id); err != nil {
		apierr.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
