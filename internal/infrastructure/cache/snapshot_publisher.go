package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/infrastructure/config"
	"github.com/Mikespro21/ARC/pkg/metrics"
)

// PublishedSnapshot is the read model written for external readers
type PublishedSnapshot struct {
	Version      uint64                `json:"version"`
	CrowdMetrics entities.CrowdMetrics `json:"crowd_metrics"`
	Leaderboards entities.Leaderboards `json:"leaderboards"`
	MarketData   []entities.MarketData `json:"market_data"`
	PublishedAt  time.Time             `json:"published_at"`
}

// SnapshotStore is the subset of go-redis commands used by the publisher
type SnapshotStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SnapshotPublisher writes the latest crowd and leaderboards to Redis and
// announces the new version on a pub/sub channel. It never reads back.
type SnapshotPublisher struct {
	store       SnapshotStore
	key         string
	channel     string
	ttl         time.Duration
	logger      *zap.Logger

	mu          sync.Mutex
	lastVersion uint64
}

func NewSnapshotPublisher(store SnapshotStore, key, channel string, ttl time.Duration, logger *zap.Logger) *SnapshotPublisher {
	return &SnapshotPublisher{
		store:   store,
		key:     key,
		channel: channel,
		ttl:     ttl,
		logger:  logger,
	}
}

// NewRedisSnapshotStore opens the go-redis v9 client backing the publisher
func NewRedisSnapshotStore(cfg *config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.PoolSize = cfg.PoolSize
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Publish stores snap unless its version was already published. Returns
// whether a write happened.
func (p *SnapshotPublisher) Publish(ctx context.Context, snap *entities.EngineSnapshot) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap == nil || (p.lastVersion != 0 && snap.Version == p.lastVersion) {
		return false, nil
	}

	payload, err := json.Marshal(PublishedSnapshot{
		Version:      snap.Version,
		CrowdMetrics: snap.CrowdMetrics,
		Leaderboards: snap.Leaderboards,
		MarketData:   snap.MarketData,
		PublishedAt:  snap.GeneratedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := p.store.Set(ctx, p.key, payload, p.ttl).Err(); err != nil {
		metrics.SnapshotPublishTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to store snapshot: %w", err)
	}
	if err := p.store.Publish(ctx, p.channel, snap.Version).Err(); err != nil {
		// the stored key is still valid for polling readers
		p.logger.Warn("Snapshot notify failed", zap.Uint64("version", snap.Version), zap.Error(err))
	}

	p.lastVersion = snap.Version
	metrics.SnapshotPublishTotal.WithLabelValues("ok").Inc()
	return true, nil
}
