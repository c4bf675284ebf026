package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
	"github.com/Mikespro21/ARC/internal/domain/services/analytics"
	"github.com/Mikespro21/ARC/internal/domain/services/crowd"
	"github.com/Mikespro21/ARC/internal/domain/services/ledger"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/pkg/metrics"
	"github.com/Mikespro21/ARC/pkg/tracing"
)

var one = decimal.NewFromInt(1)

// TradeInput is a user trade command
type TradeInput struct {
	Asset  string
	Symbol string
	Type   entities.TradeType
	Amount decimal.Decimal
	Reason string
}

// RepriceResult summarizes one reprice pass
type RepriceResult struct {
	Agents      int
	CrowdTrades int
	Exits       []SafetyExitEvent
}

// SafetyExitEvent records a forced exit
type SafetyExitEvent struct {
	AgentID string
	Type    entities.SafetyExitType
	At      time.Time
}

// ExecuteTrade fills a market order for a user agent at the current price
// adjusted by slippage and fees.
func (s *Service) ExecuteTrade(ctx context.Context, id string, in TradeInput) (*entities.Trade, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.ExecuteTrade")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", id),
		attribute.String("trade.asset", in.Asset),
		attribute.String("trade.type", string(in.Type)),
	)

	trade, err := s.executeTrade(ctx, id, in)
	result := "filled"
	if err != nil {
		result = "rejected"
		tracing.RecordError(span, err)
	}
	metrics.TradesTotal.WithLabelValues(string(in.Type), result).Inc()
	return trade, err
}

func (s *Service) executeTrade(ctx context.Context, id string, in TradeInput) (*entities.Trade, error) {
	if !in.Type.IsValid() {
		return nil, domainerrors.InvalidTradeTypeError(string(in.Type))
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domainerrors.InvalidAmountError("amount", in.Amount.String())
	}
	if in.Asset == "" {
		return nil, domainerrors.ValidationError("asset", "asset is required")
	}

	rec, err := s.userRecord(id)
	if err != nil {
		return nil, err
	}

	price := s.executionPrice(s.prices.GetPrice(ctx, in.Asset), in.Type)
	symbol := in.Symbol
	if symbol == "" {
		symbol = market.SymbolFor(in.Asset)
	}
	crowdMetrics := s.CrowdMetrics()

	rec.mu.Lock()
	a := rec.agent
	now := s.now()

	if !a.IsActive() {
		rec.mu.Unlock()
		return nil, domainerrors.AgentNotActiveError(id, string(a.Status))
	}
	if !a.Settings.AllowsAsset(in.Asset) {
		rec.mu.Unlock()
		return nil, domainerrors.AssetNotAllowedError(in.Asset)
	}
	if limit := a.Settings.MaxTradesPerDay; limit > 0 && a.TradesSince(startOfDay(now)) >= limit {
		rec.mu.Unlock()
		return nil, domainerrors.TradeLimitExceededError(limit)
	}

	portfolio, trade, err := ledger.ApplyTradeWithOptions(a.Portfolio, ledger.TradeRequest{
		AgentID:        a.ID,
		Asset:          in.Asset,
		Symbol:         symbol,
		Type:           in.Type,
		Amount:         in.Amount,
		ExecutionPrice: price,
		Reason:         in.Reason,
		Approved:       a.Settings.AutoApprove,
	}, now, s.ledgerOptions())
	if err != nil {
		rec.mu.Unlock()
		return nil, err
	}

	a.Portfolio = portfolio
	a.LastTradeAt = &now
	s.refreshPerformance(a, crowdMetrics)
	rec.mu.Unlock()

	s.logger.Info("Trade executed",
		zap.String("agent_id", id),
		zap.String("type", string(trade.Type)),
		zap.String("asset", trade.Asset),
		zap.String("amount", trade.Amount.String()),
		zap.String("price", trade.Price.String()))

	s.recompute()
	return &trade, nil
}

// executionPrice applies slippage and fees against the trader
func (s *Service) executionPrice(price decimal.Decimal, t entities.TradeType) decimal.Decimal {
	adj := s.cfg.Slippage.Add(s.cfg.TradingFee)
	if adj.IsZero() {
		return price
	}
	if t == entities.TradeTypeSell {
		return price.Mul(one.Sub(adj))
	}
	return price.Mul(one.Add(adj))
}

func (s *Service) ledgerOptions() ledger.Options {
	return ledger.Options{HistoryLimit: s.cfg.HistoryLimit}
}

// TriggerSafetyExit liquidates every position at the latest prices and
// retires the agent for good.
func (s *Service) TriggerSafetyExit(ctx context.Context, id, reason string) (*entities.Agent, error) {
	rec, err := s.userRecord(id)
	if err != nil {
		return nil, err
	}
	prices := s.prices.LatestPrices()
	crowdMetrics := s.CrowdMetrics()

	rec.mu.Lock()
	if rec.agent.Status == entities.AgentStatusExited {
		rec.mu.Unlock()
		return nil, domainerrors.AgentExitedError(id)
	}
	if reason == "" {
		reason = "manual safety exit"
	}
	if err := s.exitAgent(rec.agent, entities.SafetyExitFraudAlert, reason, prices); err != nil {
		rec.mu.Unlock()
		return nil, err
	}
	s.refreshPerformance(rec.agent, crowdMetrics)
	out := rec.agent.Clone()
	rec.mu.Unlock()

	s.recompute()
	return out, nil
}

// exitAgent sells everything and marks the agent exited. It applies all
// liquidations to a copy first so a failure leaves the agent untouched.
// Caller holds the record lock.
func (s *Service) exitAgent(a *entities.Agent, exitType entities.SafetyExitType, reason string, prices map[string]decimal.Decimal) error {
	now := s.now()
	portfolio := a.Portfolio
	for _, req := range ledger.LiquidationRequests(portfolio, prices, reason) {
		req.ExecutionPrice = s.executionPrice(req.ExecutionPrice, entities.TradeTypeSell)
		next, _, err := ledger.ApplyTradeWithOptions(portfolio, req, now, s.ledgerOptions())
		if err != nil {
			return fmt.Errorf("liquidate %s: %w", req.Asset, err)
		}
		portfolio = next
	}

	a.Portfolio = portfolio
	a.Status = entities.AgentStatusExited
	if len(a.Portfolio.Trades) > 0 {
		a.LastTradeAt = &now
	}
	for i := range a.Settings.SafetyExits {
		if a.Settings.SafetyExits[i].Type == exitType {
			a.Settings.SafetyExits[i].TriggeredAt = &now
			break
		}
	}

	metrics.SafetyExitsTotal.WithLabelValues(string(exitType)).Inc()
	s.logger.Warn("Safety exit triggered",
		zap.String("agent_id", a.ID),
		zap.String("type", string(exitType)),
		zap.String("reason", reason),
		zap.String("cash", a.Portfolio.USDCBalance.String()))
	return nil
}

// triggeredExit returns the first enabled automatic exit rule the agent has
// breached. fraud_alert is never automatic.
func triggeredExit(a *entities.Agent) (entities.SafetyExit, bool) {
	for _, e := range a.Settings.SafetyExits {
		if !e.Enabled || e.Threshold.LessThanOrEqual(decimal.Zero) {
			continue
		}
		switch e.Type {
		case entities.SafetyExitMaxDrawdown:
			if a.Performance.MaxDrawdown.GreaterThanOrEqual(e.Threshold) {
				return e, true
			}
		case entities.SafetyExitMaxDailyLoss:
			if analytics.DailyLossPercent(a).GreaterThanOrEqual(e.Threshold) {
				return e, true
			}
		}
	}
	return entities.SafetyExit{}, false
}

// RepriceAll marks every portfolio to the latest prices. In demo mode crowd
// agents may trade first. User agents that breach an automatic safety exit
// are liquidated.
func (s *Service) RepriceAll(ctx context.Context) RepriceResult {
	prices := s.prices.LatestPrices()
	crowdMetrics := s.CrowdMetrics()
	result := RepriceResult{}

	for _, rec := range s.allRecords() {
		rec.mu.Lock()
		a := rec.agent
		now := s.now()

		if rec.owner == crowd.CrowdUserID && s.cfg.DemoMode {
			if s.crowdTrade(a, prices, now) {
				result.CrowdTrades++
			}
		}

		a.Portfolio = ledger.RepriceAgainstMarketWithOptions(a.Portfolio, prices, now, s.ledgerOptions())
		s.refreshPerformance(a, crowdMetrics)

		if rec.owner != crowd.CrowdUserID && a.IsActive() {
			if exit, ok := triggeredExit(a); ok {
				if err := s.exitAgent(a, exit.Type, fmt.Sprintf("%s threshold %s%% reached", exit.Type, exit.Threshold), prices); err != nil {
					s.logger.Error("Automatic safety exit failed", zap.String("agent_id", a.ID), zap.Error(err))
				} else {
					s.refreshPerformance(a, crowdMetrics)
					result.Exits = append(result.Exits, SafetyExitEvent{AgentID: a.ID, Type: exit.Type, At: now})
				}
			}
		}
		rec.mu.Unlock()
		result.Agents++
	}

	s.recompute()
	return result
}

func (s *Service) crowdTrade(a *entities.Agent, prices map[string]decimal.Decimal, now time.Time) bool {
	s.rngMu.Lock()
	req, ok := crowd.NextTrade(s.rng, a, prices, s.cfg.CrowdTradeProbability)
	s.rngMu.Unlock()
	if !ok {
		return false
	}
	if limit := a.Settings.MaxTradesPerDay; limit > 0 && a.TradesSince(startOfDay(now)) >= limit {
		return false
	}
	portfolio, _, err := ledger.ApplyTradeWithOptions(a.Portfolio, req, now, s.ledgerOptions())
	if err != nil {
		return false
	}
	a.Portfolio = portfolio
	a.LastTradeAt = &now
	return true
}

// RollStreaks closes the trading day. An agent whose total value rose since
// the previous roll extends its streak, any other agent resets to zero. The
// current value becomes the next day's open.
func (s *Service) RollStreaks(ctx context.Context) int {
	crowdMetrics := s.CrowdMetrics()
	extended := 0
	for _, rec := range s.allRecords() {
		rec.mu.Lock()
		a := rec.agent
		if a.Portfolio.TotalValue.GreaterThan(a.DayOpenValue) {
			a.Streaks++
			extended++
		} else {
			a.Streaks = 0
		}
		a.DayOpenValue = a.Portfolio.TotalValue
		s.refreshPerformance(a, crowdMetrics)
		rec.mu.Unlock()
	}

	s.logger.Info("Daily streaks rolled", zap.Int("extended", extended))
	s.recompute()
	return extended
}

// CalculatePricing prices a subscription: agentCount^2 * risk/100 per day
func CalculatePricing(agentCount, riskLevel int) entities.PricingInfo {
	if agentCount < 0 {
		agentCount = 0
	}
	if riskLevel < 0 {
		riskLevel = 0
	}
	if riskLevel > 100 {
		riskLevel = 100
	}
	count := decimal.NewFromInt(int64(agentCount))
	daily := count.Mul(count).Mul(decimal.NewFromInt(int64(riskLevel))).Div(decimal.NewFromInt(100))
	return entities.PricingInfo{
		AgentCount:      agentCount,
		RiskLevel:       riskLevel,
		DailyPrice:      daily,
		MonthlyEstimate: daily.Mul(decimal.NewFromInt(30)),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
