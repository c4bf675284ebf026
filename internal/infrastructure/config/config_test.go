package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mikespro21/ARC/internal/infrastructure/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimitPerMin)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.Market.CoinGeckoURL)
	assert.Equal(t, 30*time.Second, cfg.Market.CacheTTL)
	assert.Len(t, cfg.Market.DefaultAssets, 8)
	assert.Equal(t, 30*time.Second, cfg.Workers.MarketRefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Workers.PortfolioRefreshInterval)
	assert.Equal(t, "0 0 0 * * *", cfg.Workers.StreakSchedule)
	assert.Equal(t, 10, cfg.Trading.MaxAgents)
	assert.Equal(t, "100", cfg.Trading.MinAgentBalanceDecimal().String())
	assert.Equal(t, "2000", cfg.Trading.DefaultBaselineDecimal().String())
	assert.True(t, cfg.Trading.PaperTrading)
	assert.True(t, cfg.DemoMode)
	assert.True(t, cfg.TestnetMode)
	assert.Equal(t, 96, cfg.Crowd.Size)
	assert.Equal(t, int64(42), cfg.Crowd.Seed)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("MARKET_REFRESH_INTERVAL", "15000")
	t.Setenv("PORTFOLIO_REFRESH_INTERVAL", "2500")
	t.Setenv("MAX_AGENTS", "4")
	t.Setenv("MIN_AGENT_BALANCE", "250")
	t.Setenv("DEMO_MODE", "false")
	t.Setenv("TESTNET_MODE", "yes")
	t.Setenv("TRADING_FEES", "0.001")
	t.Setenv("SLIPPAGE", "0.002")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("COINGECKO_API_KEY", "key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Workers.MarketRefreshInterval)
	assert.Equal(t, 2500*time.Millisecond, cfg.Workers.PortfolioRefreshInterval)
	assert.Equal(t, 4, cfg.Trading.MaxAgents)
	assert.Equal(t, "250", cfg.Trading.MinAgentBalanceDecimal().String())
	assert.False(t, cfg.DemoMode)
	assert.True(t, cfg.TestnetMode)
	assert.Equal(t, "0.001", cfg.Trading.TradingFeesDecimal().String())
	assert.Equal(t, "0.002", cfg.Trading.SlippageDecimal().String())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	assert.Equal(t, "key", cfg.Market.CoinGeckoAPIKey)
}

func TestLoad_RejectsLiveTrading(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAPER_TRADING", "false")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper_trading")
}

func TestLoad_RejectsBadFees(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRADING_FEES", "1.5")

	_, err := config.Load()
	require.Error(t, err)
}

func TestDisplayConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	display := cfg.DisplayConfig()
	assert.Equal(t, config.AppVersion, display["App Version"])
	assert.Equal(t, "Enabled", display["Demo Mode"])
	assert.Equal(t, "Enabled", display["Paper Trading"])
	assert.Equal(t, "10", display["Max Agents"])
	assert.Equal(t, "30s", display["Market Refresh"])
	assert.Equal(t, "https://api-sandbox.circle.com", display["Circle API"])
}
