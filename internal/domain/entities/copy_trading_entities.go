package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentStatus represents the lifecycle state of an agent
type AgentStatus string

const (
	AgentStatusActive AgentStatus = "active"
	AgentStatusPaused AgentStatus = "paused"
	AgentStatusExited AgentStatus = "exited"
)

// IsValid reports whether the status is a known lifecycle state
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentStatusActive, AgentStatusPaused, AgentStatusExited:
		return true
	}
	return false
}

// StrategyType is the trading style tag of an agent
type StrategyType string

const (
	StrategyAggressive   StrategyType = "aggressive"
	StrategyConservative StrategyType = "conservative"
	StrategyBalanced     StrategyType = "balanced"
	StrategySwing        StrategyType = "swing"
	StrategyDayTrading   StrategyType = "daytrading"
	StrategyHodl         StrategyType = "hodl"
	StrategyCustom       StrategyType = "custom"
)

// SeedStrategies are the strategy types assigned to generated crowd agents
var SeedStrategies = []StrategyType{
	StrategyAggressive,
	StrategyConservative,
	StrategyBalanced,
	StrategySwing,
	StrategyDayTrading,
	StrategyHodl,
}

func (s StrategyType) IsValid() bool {
	switch s {
	case StrategyAggressive, StrategyConservative, StrategyBalanced, StrategySwing,
		StrategyDayTrading, StrategyHodl, StrategyCustom:
		return true
	}
	return false
}

// CopyMode describes how an agent copies other agents
type CopyMode string

const (
	CopyModeMirror   CopyMode = "mirror"
	CopyModeRules    CopyMode = "rules"
	CopyModeStrategy CopyMode = "strategy"
)

func (m CopyMode) IsValid() bool {
	switch m {
	case "", CopyModeMirror, CopyModeRules, CopyModeStrategy:
		return true
	}
	return false
}

// AgentStrategy holds the strategy tag and the optional copy configuration
type AgentStrategy struct {
	Type              StrategyType `json:"type"`
	CopyMode          CopyMode     `json:"copy_mode,omitempty"`
	CopyingFromAgents []string     `json:"copying_from_agents,omitempty"`
	CustomRules       string       `json:"custom_rules,omitempty"`
}

// SafetyExitType identifies the rule that forces an agent out of the market
type SafetyExitType string

const (
	SafetyExitMaxDailyLoss SafetyExitType = "max_daily_loss"
	SafetyExitMaxDrawdown  SafetyExitType = "max_drawdown"
	SafetyExitFraudAlert   SafetyExitType = "fraud_alert"
)

// SafetyExit is a single exit trigger configured on an agent
type SafetyExit struct {
	ID          string          `json:"id"`
	Type        SafetyExitType  `json:"type"`
	Threshold   decimal.Decimal `json:"threshold"`
	Enabled     bool            `json:"enabled"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
}

// AgentSettings contains risk limits and exit rules
type AgentSettings struct {
	MaxPositionSize decimal.Decimal `json:"max_position_size"` // % of portfolio per trade
	MaxTradesPerDay int             `json:"max_trades_per_day"`
	AllowedAssets   []string        `json:"allowed_assets,omitempty"`
	AutoApprove     bool            `json:"auto_approve"`
	SafetyExits     []SafetyExit    `json:"safety_exits"`
}

// DefaultAgentSettings returns the settings every newly created agent starts with
func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		MaxPositionSize: decimal.NewFromInt(20),
		MaxTradesPerDay: 10,
		AutoApprove:     true,
		SafetyExits: []SafetyExit{
			{ID: "1", Type: SafetyExitMaxDailyLoss, Threshold: decimal.NewFromInt(10), Enabled: true},
			{ID: "2", Type: SafetyExitMaxDrawdown, Threshold: decimal.NewFromInt(25), Enabled: true},
			{ID: "3", Type: SafetyExitFraudAlert, Threshold: decimal.Zero, Enabled: true},
		},
	}
}

// AllowsAsset reports whether the settings permit trading the given asset
func (s AgentSettings) AllowsAsset(asset string) bool {
	if len(s.AllowedAssets) == 0 {
		return true
	}
	for _, a := range s.AllowedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// Agent is a simulated trading entity owning exactly one portfolio
type Agent struct {
	ID             string           `json:"id"`
	BotID          string           `json:"bot_id"`
	Name           string           `json:"name"`
	UserID         string           `json:"user_id"`
	Strategy       AgentStrategy    `json:"strategy"`
	Riskness       int              `json:"riskness"`
	Status         AgentStatus      `json:"status"`
	Portfolio      Portfolio        `json:"portfolio"`
	Settings       AgentSettings    `json:"settings"`
	Performance    AgentPerformance `json:"performance"`
	Streaks        int              `json:"streaks"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	DayOpenValue   decimal.Decimal  `json:"day_open_value"`
	CreatedAt      time.Time        `json:"created_at"`
	LastTradeAt    *time.Time       `json:"last_trade_at,omitempty"`
}

func (a *Agent) IsActive() bool {
	return a.Status == AgentStatusActive
}

// Clone returns a deep copy that shares no mutable state with the receiver
func (a *Agent) Clone() *Agent {
	c := *a
	c.Strategy.CopyingFromAgents = append([]string(nil), a.Strategy.CopyingFromAgents...)
	c.Settings.AllowedAssets = append([]string(nil), a.Settings.AllowedAssets...)
	c.Settings.SafetyExits = make([]SafetyExit, len(a.Settings.SafetyExits))
	for i, e := range a.Settings.SafetyExits {
		c.Settings.SafetyExits[i] = e
		if e.TriggeredAt != nil {
			t := *e.TriggeredAt
			c.Settings.SafetyExits[i].TriggeredAt = &t
		}
	}
	c.Portfolio = a.Portfolio.Clone()
	if a.LastTradeAt != nil {
		t := *a.LastTradeAt
		c.LastTradeAt = &t
	}
	return &c
}

// TradesSince counts trades executed at or after the given instant
func (a *Agent) TradesSince(since time.Time) int {
	n := 0
	for _, t := range a.Portfolio.Trades {
		if !t.Timestamp.Before(since) {
			n++
		}
	}
	return n
}
