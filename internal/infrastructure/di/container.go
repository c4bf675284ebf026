package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/adapters/coingecko"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/internal/domain/services/coach"
	marketservice "github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/internal/infrastructure/cache"
	"github.com/Mikespro21/ARC/internal/infrastructure/config"
	"github.com/Mikespro21/ARC/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Cache
	RedisClient       cache.RedisClient
	SnapshotClient    *redis.Client
	SnapshotPublisher *cache.SnapshotPublisher

	// External Services
	CoinGeckoClient *coingecko.Client

	// Domain Services
	MarketDataService *marketservice.MarketDataService
	AgentService      *agent.Service
	CoachService      *coach.Service

	// Workers
	Workers *Workers
}

// NewContainer creates a new dependency injection container. Redis is optional:
// when it is enabled but unreachable the service starts without it.
func NewContainer(cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	zapLog := log.Zap()

	c := &Container{
		Config: cfg,
		Logger: log,
		ZapLog: zapLog,
	}

	if cfg.Redis.Enabled {
		c.initializeRedis()
	}

	market := NewMarketServicesBuilder(cfg, zapLog, c.RedisClient).Build()
	c.CoinGeckoClient = market.CoinGeckoClient
	c.MarketDataService = market.MarketDataService

	// Prime market data so the demo crowd is generated at real prices when available
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Market.RequestTimeout)
	result := c.MarketDataService.Refresh(ctx)
	cancel()
	zapLog.Info("Initial market data loaded",
		zap.String("source", result.Source),
		zap.Int("assets", len(result.Data)))

	engine := NewEngineServicesBuilder(cfg, zapLog, c.MarketDataService).Build()
	c.AgentService = engine.AgentService
	c.CoachService = engine.CoachService

	c.Workers = NewWorkersBuilder(cfg, zapLog, c.MarketDataService, c.AgentService, c.SnapshotPublisher).Build()

	return c, nil
}

func (c *Container) initializeRedis() {
	redisClient, err := cache.NewRedisClient(&c.Config.Redis, c.ZapLog)
	if err != nil {
		c.ZapLog.Warn("Redis market cache unavailable, using in-memory cache only", zap.Error(err))
	} else {
		c.RedisClient = redisClient
	}

	snapshotClient, err := cache.NewRedisSnapshotStore(&c.Config.Redis)
	if err != nil {
		c.ZapLog.Warn("Redis snapshot publisher unavailable", zap.Error(err))
		return
	}
	c.SnapshotClient = snapshotClient
	c.SnapshotPublisher = cache.NewSnapshotPublisher(
		snapshotClient,
		c.Config.Redis.SnapshotKey,
		c.Config.Redis.SnapshotChannel,
		c.Config.Redis.SnapshotTTL,
		c.ZapLog.Named("snapshot_publisher"),
	)
}

// StartWorkers launches the background loops
func (c *Container) StartWorkers(ctx context.Context) error {
	c.Workers.MarketRefresh.Start(ctx)
	c.Workers.PortfolioReprice.Start(ctx)
	if err := c.Workers.StreakRoller.Start(); err != nil {
		return fmt.Errorf("failed to start streak worker: %w", err)
	}
	return nil
}

// Shutdown stops the workers. Implements graceful.Shutdowner.
func (c *Container) Shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		c.Workers.StreakRoller.Stop()
		c.Workers.PortfolioReprice.Stop()
		c.Workers.MarketRefresh.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("workers did not stop within %s", timeout)
	}
}

// Close releases Redis connections
func (c *Container) Close() error {
	var firstErr error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			firstErr = err
		}
	}
	if c.SnapshotClient != nil {
		if err := c.SnapshotClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ready reports whether optional dependencies respond
func (c *Container) Ready(ctx context.Context) map[string]string {
	status := map[string]string{"engine": "ok", "market": "ok"}
	if !c.Config.Redis.Enabled {
		status["redis"] = "disabled"
		return status
	}
	if c.RedisClient == nil {
		status["redis"] = "unavailable"
		return status
	}
	if err := c.RedisClient.Ping(ctx); err != nil {
		status["redis"] = "unavailable"
		return status
	}
	status["redis"] = "ok"
	return status
}

func (c *Container) GetAgentService() *agent.Service {
	return c.AgentService
}

func (c *Container) GetMarketDataService() *marketservice.MarketDataService {
	return c.MarketDataService
}

func (c *Container) GetCoachService() *coach.Service {
	return c.CoachService
}
