package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
)

// CreateAgentInput describes a new user agent
type CreateAgentInput struct {
	Name              string
	Strategy          entities.StrategyType
	CopyMode          entities.CopyMode
	CopyingFromAgents []string
	CustomRules       string
	Riskness          int
	InitialBalance    decimal.Decimal
}

// SettingsUpdate is a partial update of agent settings
type SettingsUpdate struct {
	MaxPositionSize *decimal.Decimal
	MaxTradesPerDay *int
	AllowedAssets   *[]string
	AutoApprove     *bool
}

// AgentUpdate is a partial update; nil fields are left unchanged
type AgentUpdate struct {
	Name              *string
	Strategy          *entities.StrategyType
	CopyMode          *entities.CopyMode
	CopyingFromAgents *[]string
	CustomRules       *string
	Riskness          *int
	Status            *entities.AgentStatus
	Settings          *SettingsUpdate
}

// SafetyExitUpdate changes one exit rule
type SafetyExitUpdate struct {
	Threshold *decimal.Decimal
	Enabled   *bool
}

// AgentLimit is the effective number of agents the user may own
func (s *Service) AgentLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentLimitLocked()
}

func (s *Service) agentLimitLocked() int {
	limit := s.user.Settings.MaxAgents
	if s.cfg.MaxAgents > 0 && (limit <= 0 || s.cfg.MaxAgents < limit) {
		limit = s.cfg.MaxAgents
	}
	return limit
}

// CreateAgent funds a new agent from the user's cash
func (s *Service) CreateAgent(ctx context.Context, in CreateAgentInput) (*entities.Agent, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domainerrors.ValidationError("name", "agent name is required")
	}
	if !in.Strategy.IsValid() {
		return nil, domainerrors.ValidationError("strategy", "unknown strategy type")
	}
	if !in.CopyMode.IsValid() {
		return nil, domainerrors.ValidationError("copy_mode", "unknown copy mode")
	}
	if err := validateRiskness(in.Riskness); err != nil {
		return nil, err
	}
	if in.InitialBalance.LessThan(s.cfg.MinAgentBalance) {
		return nil, domainerrors.MinimumBalanceError(s.cfg.MinAgentBalance.String(), in.InitialBalance.String())
	}

	crowdMetrics := s.CrowdMetrics()

	s.mu.Lock()
	limit := s.agentLimitLocked()
	if len(s.userOrder) >= limit {
		s.mu.Unlock()
		return nil, domainerrors.AgentLimitExceededError(limit)
	}
	if in.InitialBalance.GreaterThan(s.user.USDCBalance) {
		available := s.user.USDCBalance
		s.mu.Unlock()
		return nil, domainerrors.InsufficientBalanceError(in.InitialBalance.String(), available.String())
	}

	now := s.now()
	id := uuid.New().String()
	agent := &entities.Agent{
		ID:     id,
		BotID:  "BOT" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6]),
		Name:   name,
		UserID: s.user.ID,
		Strategy: entities.AgentStrategy{
			Type:              in.Strategy,
			CopyMode:          in.CopyMode,
			CopyingFromAgents: append([]string(nil), in.CopyingFromAgents...),
			CustomRules:       in.CustomRules,
		},
		Riskness:       in.Riskness,
		Status:         entities.AgentStatusActive,
		Portfolio:      entities.NewPortfolio(id, in.InitialBalance, now),
		Settings:       entities.DefaultAgentSettings(),
		InitialBalance: in.InitialBalance,
		DayOpenValue:   in.InitialBalance,
		CreatedAt:      now,
	}
	s.refreshPerformance(agent, crowdMetrics)

	s.user.USDCBalance = s.user.USDCBalance.Sub(in.InitialBalance)
	s.records[id] = &record{owner: s.user.ID, agent: agent}
	s.userOrder = append(s.userOrder, id)
	out := agent.Clone()
	s.mu.Unlock()

	s.logger.Info("Agent created",
		zap.String("agent_id", id),
		zap.String("strategy", string(in.Strategy)),
		zap.String("initial_balance", in.InitialBalance.String()))

	s.recompute()
	return out, nil
}

// UpdateAgent merges the non-nil fields of upd into the agent
func (s *Service) UpdateAgent(ctx context.Context, id string, upd AgentUpdate) (*entities.Agent, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}
	rec, err := s.userRecord(id)
	if err != nil {
		return nil, err
	}

	crowdMetrics := s.CrowdMetrics()

	rec.mu.Lock()
	a := rec.agent
	if upd.Status != nil && a.Status == entities.AgentStatusExited && *upd.Status != entities.AgentStatusExited {
		rec.mu.Unlock()
		return nil, domainerrors.AgentExitedError(id)
	}
	upd.apply(a)
	s.refreshPerformance(a, crowdMetrics)
	out := a.Clone()
	rec.mu.Unlock()

	s.recompute()
	return out, nil
}

func (u AgentUpdate) validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return domainerrors.ValidationError("name", "agent name cannot be empty")
	}
	if u.Strategy != nil && !u.Strategy.IsValid() {
		return domainerrors.ValidationError("strategy", "unknown strategy type")
	}
	if u.CopyMode != nil && !u.CopyMode.IsValid() {
		return domainerrors.ValidationError("copy_mode", "unknown copy mode")
	}
	if u.Riskness != nil {
		if err := validateRiskness(*u.Riskness); err != nil {
			return err
		}
	}
	if u.Status != nil && *u.Status != entities.AgentStatusActive && *u.Status != entities.AgentStatusPaused {
		return domainerrors.ValidationError("status", "status can only be set to active or paused")
	}
	if st := u.Settings; st != nil {
		if st.MaxPositionSize != nil && (st.MaxPositionSize.LessThanOrEqual(decimal.Zero) || st.MaxPositionSize.GreaterThan(decimal.NewFromInt(100))) {
			return domainerrors.ValidationError("max_position_size", "max position size must be within (0, 100]")
		}
		if st.MaxTradesPerDay != nil && *st.MaxTradesPerDay < 1 {
			return domainerrors.ValidationError("max_trades_per_day", "max trades per day must be at least 1")
		}
	}
	return nil
}

func (u AgentUpdate) apply(a *entities.Agent) {
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	if u.Strategy != nil {
		a.Strategy.Type = *u.Strategy
	}
	if u.CopyMode != nil {
		a.Strategy.CopyMode = *u.CopyMode
	}
	if u.CopyingFromAgents != nil {
		a.Strategy.CopyingFromAgents = append([]string(nil), (*u.CopyingFromAgents)...)
	}
	if u.CustomRules != nil {
		a.Strategy.CustomRules = *u.CustomRules
	}
	if u.Riskness != nil {
		a.Riskness = *u.Riskness
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if st := u.Settings; st != nil {
		if st.MaxPositionSize != nil {
			a.Settings.MaxPositionSize = *st.MaxPositionSize
		}
		if st.MaxTradesPerDay != nil {
			a.Settings.MaxTradesPerDay = *st.MaxTradesPerDay
		}
		if st.AllowedAssets != nil {
			a.Settings.AllowedAssets = append([]string(nil), (*st.AllowedAssets)...)
		}
		if st.AutoApprove != nil {
			a.Settings.AutoApprove = *st.AutoApprove
		}
	}
}

// DeleteAgent removes the agent and refunds its total value to the user
func (s *Service) DeleteAgent(ctx context.Context, id string) (decimal.Decimal, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok || rec.owner != s.user.ID {
		s.mu.Unlock()
		return decimal.Zero, domainerrors.AgentNotFoundError(id)
	}

	rec.mu.Lock()
	refund := rec.agent.Portfolio.TotalValue
	rec.mu.Unlock()

	s.user.USDCBalance = s.user.USDCBalance.Add(refund)
	delete(s.records, id)
	for i, existing := range s.userOrder {
		if existing == id {
			s.userOrder = append(s.userOrder[:i], s.userOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.logger.Info("Agent deleted", zap.String("agent_id", id), zap.String("refund", refund.String()))
	s.recompute()
	return refund, nil
}

// ToggleAgentStatus flips an agent between active and paused
func (s *Service) ToggleAgentStatus(ctx context.Context, id string) (*entities.Agent, error) {
	rec, err := s.userRecord(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	a := rec.agent
	switch a.Status {
	case entities.AgentStatusExited:
		rec.mu.Unlock()
		return nil, domainerrors.AgentExitedError(id)
	case entities.AgentStatusActive:
		a.Status = entities.AgentStatusPaused
	default:
		a.Status = entities.AgentStatusActive
	}
	out := a.Clone()
	rec.mu.Unlock()

	s.recompute()
	return out, nil
}

// UpdateSafetyExit changes the threshold or enablement of one exit rule
func (s *Service) UpdateSafetyExit(ctx context.Context, id, exitID string, upd SafetyExitUpdate) (*entities.Agent, error) {
	if upd.Threshold != nil && upd.Threshold.LessThan(decimal.Zero) {
		return nil, domainerrors.InvalidAmountError("threshold", upd.Threshold.String())
	}
	rec, err := s.userRecord(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	exits := rec.agent.Settings.SafetyExits
	for i := range exits {
		if exits[i].ID != exitID {
			continue
		}
		if upd.Threshold != nil {
			exits[i].Threshold = *upd.Threshold
		}
		if upd.Enabled != nil {
			exits[i].Enabled = *upd.Enabled
		}
		return rec.agent.Clone(), nil
	}
	return nil, domainerrors.SafetyExitNotFoundError(exitID)
}

// UpdateUserSettings merges the non-nil fields into the user settings
func (s *Service) UpdateUserSettings(ctx context.Context, upd entities.UserSettingsUpdate) (entities.User, error) {
	if upd.MaxAgents != nil && *upd.MaxAgents < 1 {
		return entities.User{}, domainerrors.ValidationError("max_agents", "max agents must be at least 1")
	}
	if upd.DefaultRiskLevel != nil {
		if err := validateRiskness(*upd.DefaultRiskLevel); err != nil {
			return entities.User{}, err
		}
	}
	if upd.MaxDeviationPercent != nil && (*upd.MaxDeviationPercent < 0 || *upd.MaxDeviationPercent > 100) {
		return entities.User{}, domainerrors.ValidationError("max_deviation_percent", "max deviation must be within [0, 100]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.user.Settings
	if upd.MaxAgents != nil {
		st.MaxAgents = *upd.MaxAgents
	}
	if upd.DefaultRiskLevel != nil {
		st.DefaultRiskLevel = *upd.DefaultRiskLevel
	}
	if upd.MaxDeviationPercent != nil {
		st.MaxDeviationPercent = *upd.MaxDeviationPercent
	}
	if upd.Notifications != nil {
		st.Notifications = *upd.Notifications
	}
	return s.user, nil
}

// Pricing estimates the subscription cost of the user's current agents
func (s *Service) Pricing() entities.PricingInfo {
	s.mu.RLock()
	count := len(s.userOrder)
	risk := s.user.Settings.DefaultRiskLevel
	s.mu.RUnlock()
	return CalculatePricing(count, risk)
}

func validateRiskness(r int) error {
	if r < 0 || r > 100 {
		return domainerrors.ValidationError("riskness", "riskness must be within [0, 100]")
	}
	return nil
}
