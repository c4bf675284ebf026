package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadinessChecker reports per-component status; "ok" and "disabled" are healthy
type ReadinessChecker interface {
	Ready(ctx context.Context) map[string]string
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	readiness ReadinessChecker
	logger    *zap.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(readiness ReadinessChecker, logger *zap.Logger, version string) *HealthHandler {
	return &HealthHandler{
		readiness: readiness,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Health handles the general health endpoint
// @Summary General health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	checks := h.readiness.Ready(c.Request.Context())
	status := "healthy"
	if degraded(checks) {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"timestamp":      time.Now().UTC(),
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"checks":         checks,
	})
}

// Live handles the liveness probe
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready handles the readiness probe. Redis is optional, so a missing
// Redis degrades but does not fail readiness.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := h.readiness.Ready(c.Request.Context())
	if degraded(checks) {
		h.logger.Warn("Service degraded", zap.Any("checks", checks))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": h.version,
		"time":    time.Now().Unix(),
	})
}

func degraded(checks map[string]string) bool {
	for _, status := range checks {
		if status != "ok" && status != "disabled" {
			return true
		}
	}
	return false
}
