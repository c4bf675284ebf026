package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/pkg/logger"
)

const (
	defaultTradeHistoryLimit = 50
	maxTradeHistoryLimit     = 500
)

// AgentHandlers handles agent lifecycle and trading endpoints
type AgentHandlers struct {
	engine    *agent.Service
	validator *validator.Validate
	logger    *logger.Logger
}

func NewAgentHandlers(engine *agent.Service, v *validator.Validate, logger *logger.Logger) *AgentHandlers {
	return &AgentHandlers{engine: engine, validator: v, logger: logger}
}

// CreateAgentRequest funds a new agent from the user's USDC balance
type CreateAgentRequest struct {
	Name              string          `json:"name" validate:"required,max=64"`
	Strategy          string          `json:"strategy" validate:"required,strategy"`
	CopyMode          string          `json:"copy_mode,omitempty" validate:"omitempty,copymode"`
	CopyingFromAgents []string        `json:"copying_from_agents,omitempty" validate:"max=20"`
	CustomRules       string          `json:"custom_rules,omitempty" validate:"max=2000"`
	Riskness          int             `json:"riskness" validate:"min=0,max=100"`
	InitialBalance    decimal.Decimal `json:"initial_balance"`
}

type SettingsUpdateRequest struct {
	MaxPositionSize *decimal.Decimal `json:"max_position_size,omitempty"`
	MaxTradesPerDay *int             `json:"max_trades_per_day,omitempty" validate:"omitempty,min=1,max=1000"`
	AllowedAssets   *[]string        `json:"allowed_assets,omitempty"`
	AutoApprove     *bool            `json:"auto_approve,omitempty"`
}

// UpdateAgentRequest is a partial update; omitted fields are unchanged
type UpdateAgentRequest struct {
	Name              *string                `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Strategy          *string                `json:"strategy,omitempty" validate:"omitempty,strategy"`
	CopyMode          *string                `json:"copy_mode,omitempty" validate:"omitempty,copymode"`
	CopyingFromAgents *[]string              `json:"copying_from_agents,omitempty"`
	CustomRules       *string                `json:"custom_rules,omitempty" validate:"omitempty,max=2000"`
	Riskness          *int                   `json:"riskness,omitempty" validate:"omitempty,min=0,max=100"`
	Status            *string                `json:"status,omitempty" validate:"omitempty,agentstatus"`
	Settings          *SettingsUpdateRequest `json:"settings,omitempty"`
}

type TradeRequest struct {
	Asset  string          `json:"asset" validate:"required,max=64"`
	Symbol string          `json:"symbol,omitempty" validate:"max=16"`
	Type   string          `json:"type" validate:"required,tradetype"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty" validate:"max=280"`
}

type SafetyExitRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=280"`
}

type SafetyExitUpdateRequest struct {
	Threshold *decimal.Decimal `json:"threshold,omitempty"`
	Enabled   *bool            `json:"enabled,omitempty"`
}

// ListAgents returns the user's agents
// @Summary List agents
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/agents [get]
func (h *AgentHandlers) ListAgents(c *gin.Context) {
	agents := h.engine.ListAgents()
	respondSuccess(c, gin.H{
		"agents": agents,
		"count":  len(agents),
		"limit":  h.engine.AgentLimit(),
	})
}

// CreateAgent creates and funds an agent
// @Summary Create agent
// @Tags agents
// @Accept json
// @Produce json
// @Param request body CreateAgentRequest true "Agent definition"
// @Success 201 {object} entities.Agent
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/agents [post]
func (h *AgentHandlers) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	created, err := h.engine.CreateAgent(c.Request.Context(), agent.CreateAgentInput{
		Name:              req.Name,
		Strategy:          entities.StrategyType(req.Strategy),
		CopyMode:          entities.CopyMode(req.CopyMode),
		CopyingFromAgents: req.CopyingFromAgents,
		CustomRules:       req.CustomRules,
		Riskness:          req.Riskness,
		InitialBalance:    req.InitialBalance,
	})
	if err != nil {
		h.logger.Warn("Create agent rejected", "error", err, "request_id", getRequestID(c))
		handleDomainError(c, err)
		return
	}

	h.logger.Info("Agent created", "agent_id", created.ID, "bot_id", created.BotID, "balance", created.InitialBalance.String())
	respondCreated(c, created)
}

// GetAgent returns any agent, user-owned or crowd
// GET /api/v1/agents/:id
func (h *AgentHandlers) GetAgent(c *gin.Context) {
	a, err := h.engine.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, a)
}

// UpdateAgent applies a partial update
// PATCH /api/v1/agents/:id
func (h *AgentHandlers) UpdateAgent(c *gin.Context) {
	var req UpdateAgentRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	updated, err := h.engine.UpdateAgent(c.Request.Context(), c.Param("id"), req.toUpdate())
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, updated)
}

func (r UpdateAgentRequest) toUpdate() agent.AgentUpdate {
	upd := agent.AgentUpdate{
		Name:              r.Name,
		CopyingFromAgents: r.CopyingFromAgents,
		CustomRules:       r.CustomRules,
		Riskness:          r.Riskness,
	}
	if r.Strategy != nil {
		s := entities.StrategyType(*r.Strategy)
		upd.Strategy = &s
	}
	if r.CopyMode != nil {
		m := entities.CopyMode(*r.CopyMode)
		upd.CopyMode = &m
	}
	if r.Status != nil {
		st := entities.AgentStatus(*r.Status)
		upd.Status = &st
	}
	if r.Settings != nil {
		upd.Settings = &agent.SettingsUpdate{
			MaxPositionSize: r.Settings.MaxPositionSize,
			MaxTradesPerDay: r.Settings.MaxTradesPerDay,
			AllowedAssets:   r.Settings.AllowedAssets,
			AutoApprove:     r.Settings.AutoApprove,
		}
	}
	return upd
}

// DeleteAgent removes an agent and refunds its total value to the user
// DELETE /api/v1/agents/:id
func (h *AgentHandlers) DeleteAgent(c *gin.Context) {
	id := c.Param("id")
	refund, err := h.engine.DeleteAgent(c.Request.Context(), id)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	h.logger.Info("Agent deleted", "agent_id", id, "refund", refund.String())
	respondSuccess(c, gin.H{
		"agent_id": id,
		"refund":   refund,
		"user":     h.engine.User(),
	})
}

// ExecuteTrade places a paper trade at the current market price
// @Summary Execute trade
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param request body TradeRequest true "Trade"
// @Success 201 {object} entities.Trade
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/agents/{id}/trades [post]
func (h *AgentHandlers) ExecuteTrade(c *gin.Context) {
	var req TradeRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	trade, err := h.engine.ExecuteTrade(c.Request.Context(), c.Param("id"), agent.TradeInput{
		Asset:  req.Asset,
		Symbol: req.Symbol,
		Type:   entities.TradeType(req.Type),
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondCreated(c, trade)
}

// GetTrades returns trade history, newest first
// GET /api/v1/agents/:id/trades?limit=50
func (h *AgentHandlers) GetTrades(c *gin.Context) {
	limit := parseIntParam(c, "limit", defaultTradeHistoryLimit)
	if limit <= 0 || limit > maxTradeHistoryLimit {
		limit = defaultTradeHistoryLimit
	}

	trades, err := h.engine.TradeHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, gin.H{"trades": trades, "count": len(trades)})
}

// ToggleAgent switches between active and paused
// POST /api/v1/agents/:id/toggle
func (h *AgentHandlers) ToggleAgent(c *gin.Context) {
	a, err := h.engine.ToggleAgentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, a)
}

// TriggerSafetyExit liquidates every position and exits the agent
// POST /api/v1/agents/:id/safety/exit
func (h *AgentHandlers) TriggerSafetyExit(c *gin.Context) {
	var req SafetyExitRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, h.validator, &req) {
		return
	}

	a, err := h.engine.TriggerSafetyExit(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, a)
}

// UpdateSafetyExit changes one safety exit rule
// PATCH /api/v1/agents/:id/safety/:exitId
func (h *AgentHandlers) UpdateSafetyExit(c *gin.Context) {
	var req SafetyExitUpdateRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	a, err := h.engine.UpdateSafetyExit(c.Request.Context(), c.Param("id"), c.Param("exitId"), agent.SafetyExitUpdate{
		Threshold: req.Threshold,
		Enabled:   req.Enabled,
	})
	if err != nil {
		handleDomainError(c, err)
		return
	}
	respondSuccess(c, a)
}
