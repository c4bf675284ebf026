package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentPerformance is fully derived from an agent's portfolio and history
type AgentPerformance struct {
	TotalProfit        decimal.Decimal `json:"total_profit"`
	TotalProfitPercent decimal.Decimal `json:"total_profit_percent"`
	Streaks            int             `json:"streaks"`
	WinRate            decimal.Decimal `json:"win_rate"`
	TotalTrades        int             `json:"total_trades"`
	ProfitableTrades   int             `json:"profitable_trades"`
	AvgTradeSize       decimal.Decimal `json:"avg_trade_size"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	CrowdDeviation     decimal.Decimal `json:"crowd_deviation"`
}

// StrategyCount is one bucket of the crowd strategy histogram
type StrategyCount struct {
	Strategy StrategyType `json:"strategy"`
	Count    int          `json:"count"`
}

// CrowdMetrics summarizes the active agent population
type CrowdMetrics struct {
	AvgRiskness     decimal.Decimal `json:"avg_riskness"`
	AvgTradesPerDay decimal.Decimal `json:"avg_trades_per_day"`
	AvgPositionSize decimal.Decimal `json:"avg_position_size"`
	TotalAgents     int             `json:"total_agents"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TopStrategies   []StrategyCount `json:"top_strategies"`
}

// LeaderboardPeriod is the scoring window label of a leaderboard
type LeaderboardPeriod string

const (
	PeriodDaily   LeaderboardPeriod = "daily"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodYearly  LeaderboardPeriod = "yearly"
)

// LeaderboardPeriods lists every period in display order
var LeaderboardPeriods = []LeaderboardPeriod{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly}

func (p LeaderboardPeriod) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// LeaderboardEntry is one ranked agent
type LeaderboardEntry struct {
	Rank          int               `json:"rank"`
	BotID         string            `json:"bot_id"`
	AgentName     string            `json:"agent_name"`
	Score         decimal.Decimal   `json:"score"`
	Profit        decimal.Decimal   `json:"profit"`
	ProfitPercent decimal.Decimal   `json:"profit_percent"`
	Streaks       int               `json:"streaks"`
	TotalTrades   int               `json:"total_trades"`
	WinRate       decimal.Decimal   `json:"win_rate"`
	Period        LeaderboardPeriod `json:"period"`
}

// Leaderboards holds one ranking per period
type Leaderboards struct {
	Daily   []LeaderboardEntry `json:"daily"`
	Weekly  []LeaderboardEntry `json:"weekly"`
	Monthly []LeaderboardEntry `json:"monthly"`
	Yearly  []LeaderboardEntry `json:"yearly"`
}

// ForPeriod returns the ranking for p, or nil for an unknown period
func (l Leaderboards) ForPeriod(p LeaderboardPeriod) []LeaderboardEntry {
	switch p {
	case PeriodDaily:
		return l.Daily
	case PeriodWeekly:
		return l.Weekly
	case PeriodMonthly:
		return l.Monthly
	case PeriodYearly:
		return l.Yearly
	}
	return nil
}

// EngineSnapshot is the read-only view handed to the presentation layer
type EngineSnapshot struct {
	User         User         `json:"user"`
	Agents       []*Agent     `json:"agents"`
	CrowdMetrics CrowdMetrics `json:"crowd_metrics"`
	Leaderboards Leaderboards `json:"leaderboards"`
	MarketData   []MarketData `json:"market_data"`
	Version      uint64       `json:"version"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
