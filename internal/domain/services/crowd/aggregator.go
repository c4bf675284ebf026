// Package crowd summarizes the agent population and generates the synthetic
// peer crowd every user agent is measured against.
package crowd

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// TopStrategiesLimit caps the strategy histogram
const TopStrategiesLimit = 5

// Aggregate reduces the active agents to crowd statistics. An empty or fully
// inactive population yields zero metrics rather than an error.
// avgTradesPerDay is a population constant supplied by configuration.
func Aggregate(agents []*entities.Agent, avgTradesPerDay decimal.Decimal) entities.CrowdMetrics {
	var active int
	var riskSum int64
	positionSum := decimal.Zero
	totalVolume := decimal.Zero
	counts := make(map[entities.StrategyType]int)
	var firstSeen []entities.StrategyType

	for _, a := range agents {
		if !a.IsActive() {
			continue
		}
		active++
		riskSum += int64(a.Riskness)
		positionSum = positionSum.Add(a.Settings.MaxPositionSize)
		totalVolume = totalVolume.Add(a.Portfolio.TotalValue)

		if _, seen := counts[a.Strategy.Type]; !seen {
			firstSeen = append(firstSeen, a.Strategy.Type)
		}
		counts[a.Strategy.Type]++
	}

	if active == 0 {
		return entities.CrowdMetrics{
			AvgRiskness:     decimal.Zero,
			AvgTradesPerDay: decimal.Zero,
			AvgPositionSize: decimal.Zero,
			TotalVolume:     decimal.Zero,
			TopStrategies:   []entities.StrategyCount{},
		}
	}

	n := decimal.NewFromInt(int64(active))
	return entities.CrowdMetrics{
		AvgRiskness:     decimal.NewFromInt(riskSum).Div(n).Round(0),
		AvgTradesPerDay: avgTradesPerDay,
		AvgPositionSize: positionSum.Div(n).Round(0),
		TotalAgents:     active,
		TotalVolume:     totalVolume,
		TopStrategies:   topStrategies(counts, firstSeen),
	}
}

func topStrategies(counts map[entities.StrategyType]int, order []entities.StrategyType) []entities.StrategyCount {
	hist := make([]entities.StrategyCount, 0, len(order))
	for _, s := range order {
		hist = append(hist, entities.StrategyCount{Strategy: s, Count: counts[s]})
	}
	sort.SliceStable(hist, func(i, j int) bool {
		return hist[i].Count > hist[j].Count
	})
	if len(hist) > TopStrategiesLimit {
		hist = hist[:TopStrategiesLimit]
	}
	return hist
}
