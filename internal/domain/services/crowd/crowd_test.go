package crowd_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/crowd"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func agent(status entities.AgentStatus, strategy entities.StrategyType, risk int, posSize, total string) *entities.Agent {
	return &entities.Agent{
		Status:    status,
		Strategy:  entities.AgentStrategy{Type: strategy},
		Riskness:  risk,
		Settings:  entities.AgentSettings{MaxPositionSize: decimal.RequireFromString(posSize)},
		Portfolio: entities.Portfolio{TotalValue: decimal.RequireFromString(total)},
	}
}

func TestAggregate(t *testing.T) {
	agents := []*entities.Agent{
		agent(entities.AgentStatusActive, entities.StrategySwing, 10, "15", "1000"),
		agent(entities.AgentStatusActive, entities.StrategyHodl, 21, "20", "2000"),
		agent(entities.AgentStatusActive, entities.StrategyHodl, 30, "25.5", "3000"),
		agent(entities.AgentStatusPaused, entities.StrategyAggressive, 100, "90", "9999"),
		agent(entities.AgentStatusExited, entities.StrategyAggressive, 100, "90", "9999"),
	}

	metrics := crowd.Aggregate(agents, decimal.RequireFromString("8.5"))

	assert.Equal(t, 3, metrics.TotalAgents)
	assert.True(t, decimal.NewFromInt(20).Equal(metrics.AvgRiskness), "61/3 rounds to 20, got %s", metrics.AvgRiskness)
	assert.True(t, decimal.NewFromInt(20).Equal(metrics.AvgPositionSize), "60.5/3 rounds to 20, got %s", metrics.AvgPositionSize)
	assert.True(t, decimal.NewFromInt(6000).Equal(metrics.TotalVolume))
	assert.True(t, decimal.RequireFromString("8.5").Equal(metrics.AvgTradesPerDay))

	require.Len(t, metrics.TopStrategies, 2)
	assert.Equal(t, entities.StrategyHodl, metrics.TopStrategies[0].Strategy)
	assert.Equal(t, 2, metrics.TopStrategies[0].Count)
	assert.Equal(t, entities.StrategySwing, metrics.TopStrategies[1].Strategy)
}

func TestAggregate_EmptyPopulation(t *testing.T) {
	for _, agents := range [][]*entities.Agent{
		nil,
		{agent(entities.AgentStatusPaused, entities.StrategyHodl, 50, "20", "100")},
	} {
		metrics := crowd.Aggregate(agents, decimal.RequireFromString("8.5"))
		assert.Equal(t, 0, metrics.TotalAgents)
		assert.True(t, metrics.AvgRiskness.IsZero())
		assert.True(t, metrics.AvgTradesPerDay.IsZero())
		assert.True(t, metrics.TotalVolume.IsZero())
		assert.Empty(t, metrics.TopStrategies)
	}
}

func TestAggregate_TopStrategiesStableAndTruncated(t *testing.T) {
	order := []entities.StrategyType{
		entities.StrategyCustom, entities.StrategySwing, entities.StrategyHodl,
		entities.StrategyBalanced, entities.StrategyConservative, entities.StrategyDayTrading,
	}
	var agents []*entities.Agent
	for _, s := range order {
		agents = append(agents, agent(entities.AgentStatusActive, s, 50, "20", "100"))
	}
	agents = append(agents, agent(entities.AgentStatusActive, entities.StrategyDayTrading, 50, "20", "100"))

	metrics := crowd.Aggregate(agents, decimal.Zero)

	require.Len(t, metrics.TopStrategies, crowd.TopStrategiesLimit)
	assert.Equal(t, entities.StrategyDayTrading, metrics.TopStrategies[0].Strategy)
	// ties keep first-encountered order
	assert.Equal(t, entities.StrategyCustom, metrics.TopStrategies[1].Strategy)
	assert.Equal(t, entities.StrategySwing, metrics.TopStrategies[2].Strategy)
	assert.Equal(t, entities.StrategyHodl, metrics.TopStrategies[3].Strategy)
	assert.Equal(t, entities.StrategyBalanced, metrics.TopStrategies[4].Strategy)
}

func TestGeneratePopulation_Deterministic(t *testing.T) {
	cfg := crowd.PopulationConfig{Size: 40, Seed: 42, Now: now}

	first := crowd.GeneratePopulation(cfg)
	second := crowd.GeneratePopulation(cfg)

	require.Len(t, first, 40)
	require.Len(t, second, 40)
	for i := range first {
		assert.Equal(t, first[i].BotID, second[i].BotID)
		assert.Equal(t, first[i].Riskness, second[i].Riskness)
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.True(t, first[i].Portfolio.TotalValue.Equal(second[i].Portfolio.TotalValue))
		assert.Equal(t, len(first[i].Portfolio.Trades), len(second[i].Portfolio.Trades))
	}

	a := crowd.Aggregate(first, decimal.RequireFromString("8.5"))
	b := crowd.Aggregate(second, decimal.RequireFromString("8.5"))
	assert.True(t, a.TotalVolume.Equal(b.TotalVolume))
	assert.Equal(t, a.TopStrategies, b.TopStrategies)
}

func TestGeneratePopulation_AgentsAreConsistent(t *testing.T) {
	agents := crowd.GeneratePopulation(crowd.PopulationConfig{Size: 96, Seed: 7, Prices: market.MockPrices(), Now: now})

	active := 0
	for _, a := range agents {
		assert.Equal(t, crowd.CrowdUserID, a.UserID)
		assert.Regexp(t, `^BOT[0-9A-Z]{6}$`, a.BotID)
		assert.True(t, a.Riskness >= 0 && a.Riskness < 100)
		assert.True(t, a.Streaks >= 0 && a.Streaks <= 12)
		assert.True(t, a.Strategy.Type.IsValid())
		assert.NotEqual(t, entities.StrategyCustom, a.Strategy.Type)
		assert.NotEmpty(t, a.Portfolio.Trades)

		p := a.Portfolio
		assert.True(t, p.TotalValue.Equal(p.USDCBalance.Add(p.PositionsValue())))
		for _, pos := range p.Positions {
			assert.True(t, pos.Amount.GreaterThan(decimal.Zero))
			assert.True(t, pos.CurrentPrice.Equal(market.MockPrice(pos.Asset)), "positions are marked to market")
		}
		if a.IsActive() {
			active++
		}
	}
	assert.Greater(t, active, 60)
	assert.Equal(t, "Agent Alpha", agents[0].Name)
	assert.Equal(t, "Agent 11", agents[10].Name)
}

func TestNextTrade(t *testing.T) {
	agents := crowd.GeneratePopulation(crowd.PopulationConfig{Size: 1, Seed: 3, Now: now})
	a := agents[0]
	a.Status = entities.AgentStatusActive
	r := rand.New(rand.NewSource(1))

	_, ok := crowd.NextTrade(r, a, market.MockPrices(), 0)
	assert.False(t, ok, "zero probability never trades")

	req, ok := crowd.NextTrade(r, a, market.MockPrices(), 1)
	require.True(t, ok)
	assert.Equal(t, a.ID, req.AgentID)
	assert.True(t, req.Amount.GreaterThan(decimal.Zero))
	assert.True(t, req.ExecutionPrice.Equal(market.MockPrice(req.Asset)))

	a.Status = entities.AgentStatusPaused
	_, ok = crowd.NextTrade(r, a, market.MockPrices(), 1)
	assert.False(t, ok)
}
