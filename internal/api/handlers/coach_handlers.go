package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Mikespro21/ARC/internal/domain/services/coach"
	"github.com/Mikespro21/ARC/pkg/logger"
)

// CoachHandlers handles the advisory chat endpoints
type CoachHandlers struct {
	coach     *coach.Service
	validator *validator.Validate
	logger    *logger.Logger
}

// NewCoachHandlers creates new coach handlers
func NewCoachHandlers(coachService *coach.Service, v *validator.Validate, logger *logger.Logger) *CoachHandlers {
	return &CoachHandlers{coach: coachService, validator: v, logger: logger}
}

// CoachRequest is one user question, optionally about a selected agent
type CoachRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
	AgentID string `json:"agent_id,omitempty"`
}

// Ask handles POST /api/v1/coach
func (h *CoachHandlers) Ask(c *gin.Context) {
	var req CoachRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	reply, err := h.coach.Ask(c.Request.Context(), req.Message, req.AgentID)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	h.logger.Debug("Coach replied", "topic", string(coach.Classify(req.Message)), "agent_id", req.AgentID)
	respondSuccess(c, reply)
}

// History handles GET /api/v1/coach
func (h *CoachHandlers) History(c *gin.Context) {
	history := h.coach.History()
	respondSuccess(c, gin.H{"messages": history, "count": len(history)})
}
