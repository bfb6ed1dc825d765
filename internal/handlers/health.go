package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"zynexhub/internal/db"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	ready *atomic.Bool
}

// NewHealthHandler reports ready only while ready is set and the database
// answers a ping.
func NewHealthHandler(conn *gorm.DB, ready *atomic.Bool) *HealthHandler {
	return &HealthHandler{db: conn, ready: ready}
}

func (h *HealthHandler) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.ready != nil && !h.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
