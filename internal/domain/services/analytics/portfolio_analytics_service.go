package analytics

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
)

var (
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// PerformanceCalculator derives agent performance metrics from portfolio state
type PerformanceCalculator struct {
	logger *zap.Logger
}

func NewPerformanceCalculator(logger *zap.Logger) *PerformanceCalculator {
	return &PerformanceCalculator{logger: logger}
}

// ComputePerformance recomputes every performance metric of the agent from
// scratch. Profit is measured against baseline, which must be positive.
func (c *PerformanceCalculator) ComputePerformance(agent *entities.Agent, baseline decimal.Decimal, crowd entities.CrowdMetrics) (entities.AgentPerformance, error) {
	if baseline.LessThanOrEqual(decimal.Zero) {
		c.logger.Warn("refusing to compute performance against non-positive baseline",
			zap.String("agent_id", agent.ID),
			zap.String("baseline", baseline.String()))
		return entities.AgentPerformance{}, domainerrors.InvalidBaselineError(baseline.String())
	}

	totalProfit := agent.Portfolio.TotalValue.Sub(baseline)
	profitable, closed := countProfitable(agent.Portfolio.Trades)
	maxDD, _ := MaxDrawdown(agent.Portfolio.ValueHistory)

	return entities.AgentPerformance{
		TotalProfit:        totalProfit,
		TotalProfitPercent: totalProfit.Div(baseline).Mul(hundred),
		Streaks:            agent.Streaks,
		WinRate:            winRate(profitable, closed),
		TotalTrades:        len(agent.Portfolio.Trades),
		ProfitableTrades:   profitable,
		AvgTradeSize:       AvgTradeSize(agent.Portfolio.Trades),
		MaxDrawdown:        maxDD,
		CrowdDeviation:     CrowdDeviation(agent, crowd),
	}, nil
}

// WinRate is the share of closing (sell) trades that realized a profit, in
// percent. Buys open risk and are never counted.
func WinRate(trades []entities.Trade) decimal.Decimal {
	return winRate(countProfitable(trades))
}

func countProfitable(trades []entities.Trade) (profitable, closed int) {
	for _, t := range trades {
		if t.Type != entities.TradeTypeSell {
			continue
		}
		closed++
		if t.IsProfitable() {
			profitable++
		}
	}
	return profitable, closed
}

func winRate(profitable, closed int) decimal.Decimal {
	if closed == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(profitable)).Div(decimal.NewFromInt(int64(closed))).Mul(hundred)
}

// AvgTradeSize is the mean USDC notional per trade
func AvgTradeSize(trades []entities.Trade) decimal.Decimal {
	if len(trades) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.USDCAmount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(trades))))
}

// MaxDrawdown returns the largest peak-to-trough decline across the value
// history in percent, and when the trough was observed.
func MaxDrawdown(history []entities.ValuePoint) (decimal.Decimal, *time.Time) {
	if len(history) == 0 {
		return decimal.Zero, nil
	}

	peak := history[0].Value
	maxDD := decimal.Zero
	var maxDDAt *time.Time

	for _, point := range history {
		if point.Value.GreaterThan(peak) {
			peak = point.Value
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(point.Value).Div(peak).Mul(hundred)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
				at := point.At
				maxDDAt = &at
			}
		}
	}
	return maxDD, maxDDAt
}

// CrowdDeviation scores how far the agent's parameters sit from the crowd
// averages: the mean of |metric/avg*50 - 50| over riskness, max position size
// and max trades per day, rounded to an integer. Zero when any average is zero.
func CrowdDeviation(agent *entities.Agent, crowd entities.CrowdMetrics) decimal.Decimal {
	if crowd.AvgRiskness.IsZero() || crowd.AvgPositionSize.IsZero() || crowd.AvgTradesPerDay.IsZero() {
		return decimal.Zero
	}

	risk := distanceFromMedian(decimal.NewFromInt(int64(agent.Riskness)), crowd.AvgRiskness)
	size := distanceFromMedian(agent.Settings.MaxPositionSize, crowd.AvgPositionSize)
	freq := distanceFromMedian(decimal.NewFromInt(int64(agent.Settings.MaxTradesPerDay)), crowd.AvgTradesPerDay)

	return risk.Add(size).Add(freq).Div(decimal.NewFromInt(3)).Round(0)
}

func distanceFromMedian(metric, avg decimal.Decimal) decimal.Decimal {
	return metric.Div(avg).Mul(fifty).Sub(fifty).Abs()
}

// DailyLossPercent is the decline of total value since the day opened, in
// percent. Gains report zero.
func DailyLossPercent(agent *entities.Agent) decimal.Decimal {
	open := agent.DayOpenValue
	if open.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	loss := open.Sub(agent.Portfolio.TotalValue)
	if loss.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return loss.Div(open).Mul(hundred)
}
