package di

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/adapters/coingecko"
	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/internal/domain/services/coach"
	marketservice "github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/internal/infrastructure/cache"
	"github.com/Mikespro21/ARC/internal/infrastructure/config"
	"github.com/Mikespro21/ARC/internal/workers/market_refresh_worker"
	"github.com/Mikespro21/ARC/internal/workers/portfolio_snapshot_worker"
	"github.com/Mikespro21/ARC/internal/workers/streak_worker"
	"github.com/Mikespro21/ARC/pkg/retry"
)

// MarketServicesBuilder builds the CoinGecko client and the cached market service
type MarketServicesBuilder struct {
	cfg         *config.Config
	logger      *zap.Logger
	redisClient cache.RedisClient
}

// NewMarketServicesBuilder creates a new market services builder
func NewMarketServicesBuilder(cfg *config.Config, logger *zap.Logger, redisClient cache.RedisClient) *MarketServicesBuilder {
	return &MarketServicesBuilder{
		cfg:         cfg,
		logger:      logger,
		redisClient: redisClient,
	}
}

// MarketServices holds the market data layer
type MarketServices struct {
	CoinGeckoClient   *coingecko.Client
	MarketDataService *marketservice.MarketDataService
}

// Build wires the market data layer. The Redis tier is skipped when no client is configured.
func (b *MarketServicesBuilder) Build() *MarketServices {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = b.cfg.Market.MaxRetries

	client := coingecko.NewClient(coingecko.Config{
		BaseURL: b.cfg.Market.CoinGeckoURL,
		APIKey:  b.cfg.Market.CoinGeckoAPIKey,
		Timeout: b.cfg.Market.RequestTimeout,
		Retry:   policy,
	}, b.logger.Named("coingecko"))

	var shared marketservice.SharedCache
	if b.redisClient != nil {
		shared = b.redisClient
	}

	svc := marketservice.NewMarketDataService(client, shared, marketservice.Config{
		CacheTTL:   b.cfg.Market.CacheTTL,
		DefaultIDs: b.cfg.Market.DefaultAssets,
	}, b.logger.Named("market"))

	return &MarketServices{CoinGeckoClient: client, MarketDataService: svc}
}

// EngineServicesBuilder builds the engine state container and the coach
type EngineServicesBuilder struct {
	cfg    *config.Config
	logger *zap.Logger
	prices agent.PriceSource
}

func NewEngineServicesBuilder(cfg *config.Config, logger *zap.Logger, prices agent.PriceSource) *EngineServicesBuilder {
	return &EngineServicesBuilder{cfg: cfg, logger: logger, prices: prices}
}

// EngineServices holds the engine and its read-only consumers
type EngineServices struct {
	AgentService *agent.Service
	CoachService *coach.Service
}

func (b *EngineServicesBuilder) Build() *EngineServices {
	engineCfg := EngineConfig(b.cfg)

	user := entities.DefaultUser()
	if user.Settings.MaxAgents > engineCfg.MaxAgents {
		user.Settings.MaxAgents = engineCfg.MaxAgents
	}

	agents := agent.NewService(engineCfg, user, b.prices, b.logger.Named("engine"))
	return &EngineServices{
		AgentService: agents,
		CoachService: coach.NewService(agents, b.logger.Named("coach")),
	}
}

// EngineConfig maps application config onto engine parameters
func EngineConfig(cfg *config.Config) agent.Config {
	engineCfg := agent.DefaultConfig()
	engineCfg.MaxAgents = cfg.Trading.MaxAgents
	engineCfg.MinAgentBalance = cfg.Trading.MinAgentBalanceDecimal()
	engineCfg.DefaultBaseline = cfg.Trading.DefaultBaselineDecimal()
	engineCfg.TradingFee = cfg.Trading.TradingFeesDecimal()
	engineCfg.Slippage = cfg.Trading.SlippageDecimal()
	if cfg.Trading.HistoryLimit > 0 {
		engineCfg.HistoryLimit = cfg.Trading.HistoryLimit
	}
	engineCfg.DemoMode = cfg.DemoMode
	engineCfg.CrowdSize = cfg.Crowd.Size
	engineCfg.CrowdSeed = cfg.Crowd.Seed
	if cfg.Crowd.TradeProbability > 0 {
		engineCfg.CrowdTradeProbability = cfg.Crowd.TradeProbability
	}
	if cfg.Crowd.AvgTradesPerDay > 0 {
		engineCfg.AvgTradesPerDay = decimal.NewFromFloat(cfg.Crowd.AvgTradesPerDay)
	}
	return engineCfg
}

// Workers holds the background loops
type Workers struct {
	MarketRefresh    *market_refresh_worker.Worker
	PortfolioReprice *portfolio_snapshot_worker.Worker
	StreakRoller     *streak_worker.Worker
}

// WorkersBuilder builds the background workers
type WorkersBuilder struct {
	cfg       *config.Config
	logger    *zap.Logger
	market    *marketservice.MarketDataService
	engine    *agent.Service
	publisher *cache.SnapshotPublisher
}

func NewWorkersBuilder(cfg *config.Config, logger *zap.Logger, market *marketservice.MarketDataService, engine *agent.Service, publisher *cache.SnapshotPublisher) *WorkersBuilder {
	return &WorkersBuilder{cfg: cfg, logger: logger, market: market, engine: engine, publisher: publisher}
}

func (b *WorkersBuilder) Build() *Workers {
	var publisher portfolio_snapshot_worker.Publisher
	if b.publisher != nil {
		publisher = b.publisher
	}

	return &Workers{
		MarketRefresh: market_refresh_worker.NewWorker(
			b.market, b.cfg.Workers.MarketRefreshInterval, b.logger.Named("market_refresh_worker")),
		PortfolioReprice: portfolio_snapshot_worker.NewWorker(
			b.engine, publisher, b.cfg.Workers.PortfolioRefreshInterval, b.logger.Named("portfolio_worker")),
		StreakRoller: streak_worker.NewWorker(
			b.engine, b.cfg.Workers.StreakSchedule, b.logger.Named("streak_worker")),
	}
}
