// Package leaderboard ranks active agents by rounded profit and streaks.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// MaxEntries caps every ranking
const MaxEntries = 100

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// Score rounds profit to cents before scaling, so profits closer than half a
// cent tie and the streak count decides. Halves round up toward positive
// infinity, so -10.005 becomes -10.00.
func Score(profit decimal.Decimal, streaks int) (decimal.Decimal, decimal.Decimal) {
	rounded := roundCentsHalfUp(profit)
	return rounded.Mul(hundred).Add(decimal.NewFromInt(int64(streaks))), rounded
}

func roundCentsHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// Rank scores the active agents for one period, sorts them by descending
// score keeping input order on ties, and returns at most MaxEntries entries.
// It reads agent performance only and never modifies the agents.
func Rank(agents []*entities.Agent, period entities.LeaderboardPeriod) []entities.LeaderboardEntry {
	entries := make([]entities.LeaderboardEntry, 0, len(agents))
	for _, a := range agents {
		if !a.IsActive() {
			continue
		}
		perf := a.Performance
		score, profit := Score(perf.TotalProfit, perf.Streaks)
		entries = append(entries, entities.LeaderboardEntry{
			BotID:         a.BotID,
			AgentName:     a.Name,
			Score:         score,
			Profit:        profit,
			ProfitPercent: perf.TotalProfitPercent,
			Streaks:       perf.Streaks,
			TotalTrades:   perf.TotalTrades,
			WinRate:       perf.WinRate,
			Period:        period,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score.GreaterThan(entries[j].Score)
	})

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankAll produces the ranking of every period
func RankAll(agents []*entities.Agent) entities.Leaderboards {
	return entities.Leaderboards{
		Daily:   Rank(agents, entities.PeriodDaily),
		Weekly:  Rank(agents, entities.PeriodWeekly),
		Monthly: Rank(agents, entities.PeriodMonthly),
		Yearly:  Rank(agents, entities.PeriodYearly),
	}
}
