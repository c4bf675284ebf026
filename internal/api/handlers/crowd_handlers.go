package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
)

// CrowdHandlers serves the derived views: crowd metrics, leaderboards and the
// full engine snapshot
type CrowdHandlers struct {
	engine *agent.Service
}

func NewCrowdHandlers(engine *agent.Service) *CrowdHandlers {
	return &CrowdHandlers{engine: engine}
}

// GetCrowd returns aggregated crowd metrics
// @Summary Crowd metrics
// @Tags crowd
// @Produce json
// @Success 200 {object} entities.CrowdMetrics
// @Router /api/v1/crowd [get]
func (h *CrowdHandlers) GetCrowd(c *gin.Context) {
	respondSuccess(c, h.engine.CrowdMetrics())
}

// GetLeaderboard returns the ranking for one period
// @Summary Leaderboard
// @Tags crowd
// @Produce json
// @Param period path string true "daily, weekly, monthly or yearly"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/leaderboards/{period} [get]
func (h *CrowdHandlers) GetLeaderboard(c *gin.Context) {
	period := entities.LeaderboardPeriod(c.Param("period"))
	if !period.IsValid() {
		NewError(http.StatusBadRequest, ErrCodeInvalidPeriod).
			Message("period must be one of daily, weekly, monthly, yearly").
			Detail("period", string(period)).
			Send(c)
		return
	}

	entries, err := h.engine.Leaderboard(period)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	limit := parseIntParam(c, "limit", 0)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	respondSuccess(c, gin.H{"period": period, "entries": entries, "count": len(entries)})
}

// GetSnapshot returns the user, agents, crowd, leaderboards and market data
// GET /api/v1/snapshot
func (h *CrowdHandlers) GetSnapshot(c *gin.Context) {
	respondSuccess(c, h.engine.Snapshot(c.Request.Context()))
}
