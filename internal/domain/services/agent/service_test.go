package agent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: market.MockPrices()}
}

func (f *fakePrices) set(id, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[id] = decimal.RequireFromString(price)
}

func (f *fakePrices) GetPrice(ctx context.Context, id string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prices[id]; ok {
		return p
	}
	return market.MockPrice(id)
}

func (f *fakePrices) LatestPrices() map[string]decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out
}

func (f *fakePrices) Latest() ([]entities.MarketData, uint64) {
	return market.MockMarketData(market.DefaultAssetIDs, time.Time{}), 1
}

var day = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func testConfig() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.DemoMode = false
	return cfg
}

func newEngine(t *testing.T, cfg agent.Config) (*agent.Service, *fakePrices) {
	t.Helper()
	prices := newFakePrices()
	svc := agent.NewService(cfg, entities.DefaultUser(), prices, zap.NewNop())
	svc.SetClock(func() time.Time { return day })
	return svc, prices
}

func createAgent(t *testing.T, svc *agent.Service, balance string) *entities.Agent {
	t.Helper()
	a, err := svc.CreateAgent(context.Background(), agent.CreateAgentInput{
		Name:           "Momentum",
		Strategy:       entities.StrategySwing,
		Riskness:       40,
		InitialBalance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return a
}

func buyBTC(svc *agent.Service, id, amount string) (*entities.Trade, error) {
	return svc.ExecuteTrade(context.Background(), id, agent.TradeInput{
		Asset:  "bitcoin",
		Type:   entities.TradeTypeBuy,
		Amount: decimal.RequireFromString(amount),
	})
}

func TestCreateAgent(t *testing.T) {
	svc, _ := newEngine(t, testConfig())

	a := createAgent(t, svc, "2000")

	assert.Equal(t, entities.AgentStatusActive, a.Status)
	assert.Regexp(t, `^BOT[0-9A-F]{6}$`, a.BotID)
	assert.Equal(t, "2000", a.Portfolio.USDCBalance.String())
	assert.Equal(t, "2000", a.Portfolio.TotalValue.String())
	assert.Equal(t, "20", a.Settings.MaxPositionSize.String())
	assert.Equal(t, 10, a.Settings.MaxTradesPerDay)
	assert.True(t, a.Settings.AutoApprove)
	require.Len(t, a.Settings.SafetyExits, 3)
	assert.Equal(t, "8000", svc.User().USDCBalance.String())
	assert.Len(t, svc.ListAgents(), 1)
}

func TestCreateAgent_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   agent.CreateAgentInput
		wantErr error
	}{
		{"below minimum balance", agent.CreateAgentInput{Name: "x", Strategy: entities.StrategyHodl, InitialBalance: decimal.NewFromInt(99)}, domainerrors.ErrInvalidAmount},
		{"more than user cash", agent.CreateAgentInput{Name: "x", Strategy: entities.StrategyHodl, InitialBalance: decimal.NewFromInt(10001)}, domainerrors.ErrInsufficientBalance},
		{"empty name", agent.CreateAgentInput{Name: " ", Strategy: entities.StrategyHodl, InitialBalance: decimal.NewFromInt(500)}, domainerrors.ErrInvalidInput},
		{"unknown strategy", agent.CreateAgentInput{Name: "x", Strategy: "yolo", InitialBalance: decimal.NewFromInt(500)}, domainerrors.ErrInvalidInput},
		{"riskness out of range", agent.CreateAgentInput{Name: "x", Strategy: entities.StrategyHodl, Riskness: 101, InitialBalance: decimal.NewFromInt(500)}, domainerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newEngine(t, testConfig())
			_, err := svc.CreateAgent(ctx, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "10000", svc.User().USDCBalance.String())
			assert.Empty(t, svc.ListAgents())
		})
	}
}

func TestCreateAgent_LimitIsMinOfUserAndConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAgents = 2
	svc, _ := newEngine(t, cfg)

	createAgent(t, svc, "100")
	createAgent(t, svc, "100")
	_, err := svc.CreateAgent(context.Background(), agent.CreateAgentInput{Name: "third", Strategy: entities.StrategyHodl, InitialBalance: decimal.NewFromInt(100)})
	require.ErrorIs(t, err, domainerrors.ErrAgentLimitExceeded)
	assert.Equal(t, 2, svc.AgentLimit())

	one := 1
	_, err = svc.UpdateUserSettings(context.Background(), entities.UserSettingsUpdate{MaxAgents: &one})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.AgentLimit())
}

func TestExecuteTrade_BuyAndSell(t *testing.T) {
	svc, prices := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")

	trade, err := buyBTC(svc, a.ID, "0.02")
	require.NoError(t, err)
	assert.Equal(t, "45000", trade.Price.String())
	assert.Equal(t, "900", trade.USDCAmount.String())
	assert.Equal(t, "BTC", trade.Symbol)
	assert.True(t, trade.Approved)

	prices.set("bitcoin", "50000")
	sell, err := svc.ExecuteTrade(context.Background(), a.ID, agent.TradeInput{
		Asset: "bitcoin", Type: entities.TradeTypeSell, Amount: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "50", sell.RealizedPnL.String())

	got, err := svc.GetAgent(context.Background(), a.ID)
	require.NoError(t, err)
	p := got.Portfolio
	assert.Equal(t, "1600", p.USDCBalance.String())
	assert.True(t, p.TotalValue.Equal(p.USDCBalance.Add(p.PositionsValue())))
	assert.Equal(t, 2, got.Performance.TotalTrades)
	assert.Equal(t, 1, got.Performance.ProfitableTrades)

	history, err := svc.TradeHistory(context.Background(), a.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entities.TradeTypeSell, history[0].Type)
}

func TestExecuteTrade_SlippageAndFees(t *testing.T) {
	cfg := testConfig()
	cfg.Slippage = decimal.RequireFromString("0.01")
	cfg.TradingFee = decimal.RequireFromString("0.001")
	svc, _ := newEngine(t, cfg)
	a := createAgent(t, svc, "2000")

	buy, err := buyBTC(svc, a.ID, "0.01")
	require.NoError(t, err)
	assert.Equal(t, "45495", buy.Price.String())

	sell, err := svc.ExecuteTrade(context.Background(), a.ID, agent.TradeInput{
		Asset: "bitcoin", Type: entities.TradeTypeSell, Amount: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "44505", sell.Price.String())
	assert.True(t, sell.RealizedPnL.LessThan(decimal.Zero))
}

func TestExecuteTrade_Enforcement(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")

	_, err := buyBTC(svc, a.ID, "1")
	require.ErrorIs(t, err, domainerrors.ErrInsufficientBalance)

	_, err = svc.ExecuteTrade(ctx, a.ID, agent.TradeInput{Asset: "bitcoin", Type: entities.TradeTypeSell, Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domainerrors.ErrNoPosition)

	_, err = svc.ExecuteTrade(ctx, a.ID, agent.TradeInput{Asset: "bitcoin", Type: "hold", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domainerrors.ErrInvalidTradeType)

	_, err = buyBTC(svc, "missing", "0.01")
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)

	allowed := []string{"ethereum"}
	two := 2
	_, err = svc.UpdateAgent(ctx, a.ID, agent.AgentUpdate{Settings: &agent.SettingsUpdate{AllowedAssets: &allowed, MaxTradesPerDay: &two}})
	require.NoError(t, err)

	_, err = buyBTC(svc, a.ID, "0.01")
	require.ErrorIs(t, err, domainerrors.ErrAssetNotAllowed)

	for i := 0; i < 2; i++ {
		_, err = svc.ExecuteTrade(ctx, a.ID, agent.TradeInput{Asset: "ethereum", Type: entities.TradeTypeBuy, Amount: decimal.RequireFromString("0.1")})
		require.NoError(t, err)
	}
	_, err = svc.ExecuteTrade(ctx, a.ID, agent.TradeInput{Asset: "ethereum", Type: entities.TradeTypeBuy, Amount: decimal.RequireFromString("0.1")})
	require.ErrorIs(t, err, domainerrors.ErrTradeLimitExceeded)

	_, err = svc.ToggleAgentStatus(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, a.ID, agent.TradeInput{Asset: "ethereum", Type: entities.TradeTypeSell, Amount: decimal.RequireFromString("0.1")})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotActive)

	got, err := svc.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Portfolio.Trades, 2, "rejected commands leave no trace")
	assert.Equal(t, "1500", got.Portfolio.USDCBalance.String())
}

func TestDeleteAgent_RefundsTotalValue(t *testing.T) {
	svc, prices := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")

	_, err := buyBTC(svc, a.ID, "0.02")
	require.NoError(t, err)
	prices.set("bitcoin", "50000")
	svc.RepriceAll(context.Background())

	refund, err := svc.DeleteAgent(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2100", refund.String())
	assert.Equal(t, "10100", svc.User().USDCBalance.String())
	assert.Empty(t, svc.ListAgents())

	_, err = svc.DeleteAgent(context.Background(), a.ID)
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)
}

func TestToggleAndManualSafetyExit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")

	toggled, err := svc.ToggleAgentStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusPaused, toggled.Status)
	toggled, err = svc.ToggleAgentStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusActive, toggled.Status)

	_, err = buyBTC(svc, a.ID, "0.02")
	require.NoError(t, err)

	exited, err := svc.TriggerSafetyExit(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusExited, exited.Status)
	assert.Empty(t, exited.Portfolio.Positions)
	assert.Equal(t, "2000", exited.Portfolio.USDCBalance.String())
	assert.NotNil(t, exited.Settings.SafetyExits[2].TriggeredAt)

	_, err = svc.ToggleAgentStatus(ctx, a.ID)
	require.ErrorIs(t, err, domainerrors.ErrAgentExited)
	_, err = svc.TriggerSafetyExit(ctx, a.ID, "again")
	require.ErrorIs(t, err, domainerrors.ErrAgentExited)

	active := entities.AgentStatusActive
	_, err = svc.UpdateAgent(ctx, a.ID, agent.AgentUpdate{Status: &active})
	require.ErrorIs(t, err, domainerrors.ErrAgentExited)
}

func TestRepriceAll_AutomaticSafetyExits(t *testing.T) {
	ctx := context.Background()

	t.Run("daily loss fires first", func(t *testing.T) {
		svc, prices := newEngine(t, testConfig())
		a := createAgent(t, svc, "2000")
		_, err := buyBTC(svc, a.ID, "0.04")
		require.NoError(t, err)

		prices.set("bitcoin", "30000")
		result := svc.RepriceAll(ctx)

		require.Len(t, result.Exits, 1)
		assert.Equal(t, entities.SafetyExitMaxDailyLoss, result.Exits[0].Type)
		got, _ := svc.GetAgent(ctx, a.ID)
		assert.Equal(t, entities.AgentStatusExited, got.Status)
		assert.Equal(t, "1400", got.Portfolio.USDCBalance.String())
	})

	t.Run("drawdown when daily loss disabled", func(t *testing.T) {
		svc, prices := newEngine(t, testConfig())
		a := createAgent(t, svc, "2000")
		_, err := buyBTC(svc, a.ID, "0.04")
		require.NoError(t, err)

		disabled := false
		_, err = svc.UpdateSafetyExit(ctx, a.ID, "1", agent.SafetyExitUpdate{Enabled: &disabled})
		require.NoError(t, err)

		prices.set("bitcoin", "40000")
		result := svc.RepriceAll(ctx)
		assert.Empty(t, result.Exits, "10% drawdown is under the 25% threshold")

		prices.set("bitcoin", "30000")
		result = svc.RepriceAll(ctx)
		require.Len(t, result.Exits, 1)
		assert.Equal(t, entities.SafetyExitMaxDrawdown, result.Exits[0].Type)
	})

	t.Run("unknown exit id", func(t *testing.T) {
		svc, _ := newEngine(t, testConfig())
		a := createAgent(t, svc, "2000")
		_, err := svc.UpdateSafetyExit(ctx, a.ID, "9", agent.SafetyExitUpdate{})
		require.ErrorIs(t, err, domainerrors.ErrSafetyExitNotFound)
	})
}

func TestRepriceAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, prices := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")
	_, err := buyBTC(svc, a.ID, "0.02")
	require.NoError(t, err)
	prices.set("bitcoin", "46000")

	svc.RepriceAll(ctx)
	first, _ := svc.GetAgent(ctx, a.ID)
	svc.RepriceAll(ctx)
	second, _ := svc.GetAgent(ctx, a.ID)

	assert.True(t, first.Portfolio.TotalValue.Equal(second.Portfolio.TotalValue))
	assert.Equal(t, len(first.Portfolio.ValueHistory), len(second.Portfolio.ValueHistory))
}

func TestRollStreaks(t *testing.T) {
	ctx := context.Background()
	svc, prices := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")
	_, err := buyBTC(svc, a.ID, "0.02")
	require.NoError(t, err)

	prices.set("bitcoin", "46000")
	svc.RepriceAll(ctx)
	assert.Equal(t, 1, svc.RollStreaks(ctx))

	got, _ := svc.GetAgent(ctx, a.ID)
	assert.Equal(t, 1, got.Streaks)
	assert.Equal(t, 1, got.Performance.Streaks)
	assert.Equal(t, "2020", got.DayOpenValue.String())

	svc.RollStreaks(ctx)
	got, _ = svc.GetAgent(ctx, a.ID)
	assert.Equal(t, 0, got.Streaks, "flat day resets the streak")
}

func TestViewsFollowCommands(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t, testConfig())

	before := svc.ViewsVersion()
	assert.Equal(t, 0, svc.CrowdMetrics().TotalAgents)

	a := createAgent(t, svc, "2000")
	assert.Greater(t, svc.ViewsVersion(), before)
	assert.Equal(t, 1, svc.CrowdMetrics().TotalAgents)

	entries, err := svc.Leaderboard(entities.PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.BotID, entries[0].BotID)

	_, err = svc.Leaderboard("hourly")
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = svc.ToggleAgentStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.CrowdMetrics().TotalAgents)
	paused, _ := svc.Leaderboard(entities.PeriodWeekly)
	assert.Empty(t, paused)

	snap := svc.Snapshot(ctx)
	assert.Len(t, snap.Agents, 1)
	assert.Equal(t, svc.ViewsVersion(), snap.Version)
	assert.Len(t, snap.MarketData, len(market.DefaultAssetIDs))
}

func TestDemoCrowd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DemoMode = true
	cfg.CrowdSize = 20
	cfg.CrowdTradeProbability = 1
	svc := agent.NewService(cfg, entities.DefaultUser(), newFakePrices(), zap.NewNop())

	crowdAgents := svc.CrowdAgents()
	require.Len(t, crowdAgents, 20)
	assert.Greater(t, svc.CrowdMetrics().TotalAgents, 0)
	assert.NotEmpty(t, crowdAgents[0].Performance.AvgTradeSize.String())

	_, err := buyBTC(svc, crowdAgents[0].ID, "0.001")
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound, "crowd agents are not user commandable")
	_, err = svc.GetAgent(ctx, crowdAgents[0].ID)
	require.NoError(t, err)

	result := svc.RepriceAll(ctx)
	assert.Equal(t, 20, result.Agents)
	assert.Greater(t, result.CrowdTrades, 0)
	for _, a := range svc.CrowdAgents() {
		p := a.Portfolio
		assert.True(t, p.TotalValue.Equal(p.USDCBalance.Add(p.PositionsValue())))
	}
}

func TestConcurrentTradesKeepInvariant(t *testing.T) {
	svc, _ := newEngine(t, testConfig())
	a := createAgent(t, svc, "2000")
	hundred := 100
	_, err := svc.UpdateAgent(context.Background(), a.ID, agent.AgentUpdate{Settings: &agent.SettingsUpdate{MaxTradesPerDay: &hundred}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	filled := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := buyBTC(svc, a.ID, "0.001"); err == nil {
				mu.Lock()
				filled++
				mu.Unlock()
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RepriceAll(context.Background())
		}()
	}
	wg.Wait()

	got, err := svc.GetAgent(context.Background(), a.ID)
	require.NoError(t, err)
	p := got.Portfolio
	assert.Len(t, p.Trades, filled)
	assert.True(t, p.TotalValue.Equal(p.USDCBalance.Add(p.PositionsValue())))
	assert.Equal(t, "2000", p.TotalValue.String())
}

func TestCalculatePricing(t *testing.T) {
	info := agent.CalculatePricing(3, 50)
	assert.Equal(t, "4.5", info.DailyPrice.String())
	assert.Equal(t, "135", info.MonthlyEstimate.String())

	zero := agent.CalculatePricing(0, 80)
	assert.True(t, zero.DailyPrice.IsZero())

	clamped := agent.CalculatePricing(2, 150)
	assert.Equal(t, 100, clamped.RiskLevel)
	assert.Equal(t, "4", clamped.DailyPrice.String())

	svc, _ := newEngine(t, testConfig())
	createAgent(t, svc, "100")
	createAgent(t, svc, "100")
	assert.Equal(t, "2", svc.Pricing().DailyPrice.String())
}
