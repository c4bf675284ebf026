package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// AppVersion is reported by /version and the display config
const AppVersion = "1.7.0"

// Config holds all configuration for the application
type Config struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Market       MarketConfig       `mapstructure:"market"`
	Trading      TradingConfig      `mapstructure:"trading"`
	Crowd        CrowdConfig        `mapstructure:"crowd"`
	Workers      WorkerConfig       `mapstructure:"workers"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Integrations IntegrationsConfig `mapstructure:"integrations"`
	DemoMode     bool               `mapstructure:"demo_mode"`
	TestnetMode  bool               `mapstructure:"testnet_mode"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
}

// RedisConfig enables the optional shared market cache and snapshot publisher
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	SnapshotKey     string        `mapstructure:"snapshot_key"`
	SnapshotChannel string        `mapstructure:"snapshot_channel"`
	SnapshotTTL     time.Duration `mapstructure:"snapshot_ttl"`
}

type MarketConfig struct {
	CoinGeckoURL    string        `mapstructure:"coingecko_url"`
	CoinGeckoAPIKey string        `mapstructure:"coingecko_api_key"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	DefaultAssets   []string      `mapstructure:"default_assets"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

type TradingConfig struct {
	PaperTrading    bool    `mapstructure:"paper_trading"`
	MaxAgents       int     `mapstructure:"max_agents"`
	MinAgentBalance float64 `mapstructure:"min_agent_balance"`
	DefaultBaseline float64 `mapstructure:"default_baseline"`
	TradingFees     float64 `mapstructure:"trading_fees"` // fraction
	Slippage        float64 `mapstructure:"slippage"`     // fraction
	HistoryLimit    int     `mapstructure:"history_limit"`
}

type CrowdConfig struct {
	Size             int     `mapstructure:"size"`
	Seed             int64   `mapstructure:"seed"`
	AvgTradesPerDay  float64 `mapstructure:"avg_trades_per_day"`
	TradeProbability float64 `mapstructure:"trade_probability"`
}

type WorkerConfig struct {
	MarketRefreshInterval    time.Duration `mapstructure:"market_refresh_interval"`
	PortfolioRefreshInterval time.Duration `mapstructure:"portfolio_refresh_interval"`
	StreakSchedule           string        `mapstructure:"streak_schedule"`
	StreamInterval           time.Duration `mapstructure:"stream_interval"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// IntegrationsConfig lists external endpoints shown in the display config only
type IntegrationsConfig struct {
	ArcRPCURL           string `mapstructure:"arc_rpc_url"`
	QubicRPCURL         string `mapstructure:"qubic_rpc_url"`
	CircleAPIURL        string `mapstructure:"circle_api_url"`
	USDCContractAddress string `mapstructure:"usdc_contract_address"`
}

// Load reads .env, configs/config.yaml and the environment, in increasing precedence
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("demo_mode", true)
	v.SetDefault("testnet_mode", true)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 120)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.snapshot_key", "crowdlike:snapshot")
	v.SetDefault("redis.snapshot_channel", "crowdlike:snapshots")
	v.SetDefault("redis.snapshot_ttl", 5*time.Minute)

	v.SetDefault("market.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.request_timeout", 10*time.Second)
	v.SetDefault("market.cache_ttl", 30*time.Second)
	v.SetDefault("market.default_assets", []string{
		"bitcoin", "ethereum", "solana", "cardano",
		"polkadot", "binancecoin", "ripple", "dogecoin",
	})
	v.SetDefault("market.max_retries", 2)

	v.SetDefault("trading.paper_trading", true)
	v.SetDefault("trading.max_agents", 10)
	v.SetDefault("trading.min_agent_balance", 100)
	v.SetDefault("trading.default_baseline", 2000)
	v.SetDefault("trading.trading_fees", 0)
	v.SetDefault("trading.slippage", 0)
	v.SetDefault("trading.history_limit", 500)

	v.SetDefault("crowd.size", 96)
	v.SetDefault("crowd.seed", 42)
	v.SetDefault("crowd.avg_trades_per_day", 8.5)
	v.SetDefault("crowd.trade_probability", 0.05)

	v.SetDefault("workers.market_refresh_interval", 30*time.Second)
	v.SetDefault("workers.portfolio_refresh_interval", 5*time.Second)
	v.SetDefault("workers.streak_schedule", "0 0 0 * * *")
	v.SetDefault("workers.stream_interval", 2*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("integrations.arc_rpc_url", "https://arc-testnet.rpc.url")
	v.SetDefault("integrations.qubic_rpc_url", "https://qubic-testnet.rpc.url")
	v.SetDefault("integrations.circle_api_url", "https://api-sandbox.circle.com")
	v.SetDefault("integrations.usdc_contract_address", "0x...")
}

// overrideFromEnv maps the flat environment variables of the web client onto
// config keys. Refresh intervals are given in milliseconds.
func overrideFromEnv(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		v.Set("log_level", level)
	}

	// Market data
	if url := os.Getenv("COINGECKO_API_URL"); url != "" {
		v.Set("market.coingecko_url", url)
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		v.Set("market.coingecko_api_key", key)
	}
	setMillis(v, "MARKET_REFRESH_INTERVAL", "workers.market_refresh_interval")
	setMillis(v, "PORTFOLIO_REFRESH_INTERVAL", "workers.portfolio_refresh_interval")

	// Agents and trading
	if maxAgents := os.Getenv("MAX_AGENTS"); maxAgents != "" {
		if n, err := strconv.Atoi(maxAgents); err == nil {
			v.Set("trading.max_agents", n)
		}
	}
	setFloat(v, "MIN_AGENT_BALANCE", "trading.min_agent_balance")
	setFloat(v, "TRADING_FEES", "trading.trading_fees")
	setFloat(v, "SLIPPAGE", "trading.slippage")

	// Flags default to enabled; only the literal "false" turns them off
	setFlag(v, "DEMO_MODE", "demo_mode")
	setFlag(v, "TESTNET_MODE", "testnet_mode")
	setFlag(v, "PAPER_TRADING", "trading.paper_trading")

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		v.Set("redis.url", redisURL)
		v.Set("redis.enabled", true)
	}
}

func setMillis(v *viper.Viper, env, key string) {
	raw := os.Getenv(env)
	if raw == "" {
		return
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		v.Set(key, time.Duration(ms)*time.Millisecond)
	}
}

func setFloat(v *viper.Viper, env, key string) {
	raw := os.Getenv(env)
	if raw == "" {
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		v.Set(key, f)
	}
}

func setFlag(v *viper.Viper, env, key string) {
	if raw, ok := os.LookupEnv(env); ok {
		v.Set(key, raw != "false")
	}
}

func validate(config *Config) error {
	if !config.Trading.PaperTrading {
		return fmt.Errorf("live trading is not supported; paper_trading must be enabled")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", config.Server.Port)
	}
	if config.Market.CoinGeckoURL == "" {
		return fmt.Errorf("coingecko url is required")
	}
	if config.Trading.MaxAgents < 1 {
		return fmt.Errorf("max agents must be at least 1")
	}
	if config.Trading.MinAgentBalance < 0 {
		return fmt.Errorf("min agent balance cannot be negative")
	}
	if config.Trading.DefaultBaseline <= 0 {
		return fmt.Errorf("default baseline must be positive")
	}
	if config.Trading.TradingFees < 0 || config.Trading.TradingFees >= 1 {
		return fmt.Errorf("trading fees must be a fraction in [0, 1)")
	}
	if config.Trading.Slippage < 0 || config.Trading.Slippage >= 1 {
		return fmt.Errorf("slippage must be a fraction in [0, 1)")
	}
	if config.Workers.MarketRefreshInterval <= 0 || config.Workers.PortfolioRefreshInterval <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}
	if config.Crowd.Size < 0 {
		return fmt.Errorf("crowd size cannot be negative")
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c TradingConfig) MinAgentBalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinAgentBalance)
}

func (c TradingConfig) DefaultBaselineDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultBaseline)
}

func (c TradingConfig) TradingFeesDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradingFees)
}

func (c TradingConfig) SlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Slippage)
}

// DisplayConfig is the read-only configuration shown to the user
func (c *Config) DisplayConfig() map[string]string {
	return map[string]string{
		"App Version":    AppVersion,
		"Demo Mode":      enabled(c.DemoMode),
		"Testnet Mode":   enabled(c.TestnetMode),
		"Paper Trading":  enabled(c.Trading.PaperTrading),
		"CoinGecko API":  c.Market.CoinGeckoURL,
		"Arc RPC":        c.Integrations.ArcRPCURL,
		"Qubic RPC":      c.Integrations.QubicRPCURL,
		"Circle API":     c.Integrations.CircleAPIURL,
		"USDC Contract":  c.Integrations.USDCContractAddress,
		"Max Agents":     strconv.Itoa(c.Trading.MaxAgents),
		"Market Refresh": fmt.Sprintf("%gs", c.Workers.MarketRefreshInterval.Seconds()),
	}
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
