package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/pkg/logger"
)

// UserHandlers handles the local user, pricing and display config
type UserHandlers struct {
	engine        *agent.Service
	displayConfig map[string]string
	validator     *validator.Validate
	logger        *logger.Logger
}

func NewUserHandlers(engine *agent.Service, displayConfig map[string]string, v *validator.Validate, logger *logger.Logger) *UserHandlers {
	return &UserHandlers{engine: engine, displayConfig: displayConfig, validator: v, logger: logger}
}

// GetUser handles GET /api/v1/user
func (h *UserHandlers) GetUser(c *gin.Context) {
	respondSuccess(c, h.engine.User())
}

// UpdateSettings handles PATCH /api/v1/user/settings
func (h *UserHandlers) UpdateSettings(c *gin.Context) {
	var req entities.UserSettingsUpdate
	if !bindJSON(c, h.validator, &req) {
		return
	}

	user, err := h.engine.UpdateUserSettings(c.Request.Context(), req)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	h.logger.Info("User settings updated", "user_id", user.ID, "request_id", getRequestID(c))
	respondSuccess(c, user)
}

// GetPricing handles GET /api/v1/pricing. Optional agents and risk query
// parameters price a hypothetical setup instead of the current one.
func (h *UserHandlers) GetPricing(c *gin.Context) {
	if c.Query("agents") == "" && c.Query("risk") == "" {
		respondSuccess(c, h.engine.Pricing())
		return
	}

	current := h.engine.Pricing()
	agents := parseIntParam(c, "agents", current.AgentCount)
	risk := parseIntParam(c, "risk", current.RiskLevel)
	respondSuccess(c, agent.CalculatePricing(agents, risk))
}

// GetConfig handles GET /api/v1/config
func (h *UserHandlers) GetConfig(c *gin.Context) {
	respondSuccess(c, h.displayConfig)
}
