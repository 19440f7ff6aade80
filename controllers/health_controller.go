package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	checks  map[string]Pinger
	version string
}

// NewHealthController pings each named dependency on every /health call.
func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks, version: version}
}

// GET /health
func (h *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			logger.WithContext(ctx).Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"version": h.version,
		"checks":  deps,
	})
}

// GET /ping
func (h *HealthController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
