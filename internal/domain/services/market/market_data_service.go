package market

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
	"github.com/Mikespro21/ARC/pkg/metrics"
	"github.com/Mikespro21/ARC/pkg/tracing"
)

// DefaultCacheTTL bounds how long a successful response is served from cache
const DefaultCacheTTL = 30 * time.Second

// Data sources reported by refreshes
const (
	SourceLive  = "live"
	SourceCache = "cache"
	SourceRedis = "redis"
	SourceMock  = "mock"
)

// Provider is an upstream market data API
type Provider interface {
	GetMarkets(ctx context.Context, ids []string) ([]entities.MarketData, error)
	GetPrice(ctx context.Context, id string) (decimal.Decimal, error)
	Search(ctx context.Context, query string) ([]entities.CoinSearchResult, error)
	TrendingIDs(ctx context.Context) ([]string, error)
}

// SharedCache is an optional second cache tier shared between processes
type SharedCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// Config tunes the market data service
type Config struct {
	CacheTTL   time.Duration
	DefaultIDs []string
}

// RefreshResult describes one background refresh
type RefreshResult struct {
	Generation uint64
	Source     string
	Applied    bool
	Data       []entities.MarketData
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// MarketDataService serves coin prices with a time-boxed cache and falls back
// to deterministic mock data whenever the upstream cannot answer.
type MarketDataService struct {
	provider   Provider
	shared     SharedCache
	ttl        time.Duration
	defaultIDs []string
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry

	started   atomic.Uint64
	latestMu  sync.RWMutex
	latest    []entities.MarketData
	latestGen uint64
}

// NewMarketDataService creates the service. shared may be nil.
func NewMarketDataService(provider Provider, shared SharedCache, cfg Config, logger *zap.Logger) *MarketDataService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if len(cfg.DefaultIDs) == 0 {
		cfg.DefaultIDs = DefaultAssetIDs
	}
	return &MarketDataService{
		provider:   provider,
		shared:     shared,
		ttl:        cfg.CacheTTL,
		defaultIDs: append([]string(nil), cfg.DefaultIDs...),
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// SetClock replaces the time source
func (s *MarketDataService) SetClock(now func() time.Time) {
	s.now = now
}

// DefaultIDs returns the coin set refreshed in the background
func (s *MarketDataService) DefaultIDs() []string {
	return append([]string(nil), s.defaultIDs...)
}

// GetMarketData returns market data for ids, or for the default set when ids
// is empty. It never fails: upstream errors degrade to mock data.
func (s *MarketDataService) GetMarketData(ctx context.Context, ids []string) []entities.MarketData {
	data, _ := s.marketData(ctx, normalizeIDs(ids, s.defaultIDs))
	return data
}

func (s *MarketDataService) marketData(ctx context.Context, ids []string) ([]entities.MarketData, string) {
	key := "markets_" + strings.Join(ids, ",")

	var cached []entities.MarketData
	if tier, ok := s.lookup(ctx, key, &cached); ok {
		return cached, tier
	}

	data, err := s.provider.GetMarkets(ctx, ids)
	if err == nil && len(data) > 0 {
		s.store(ctx, key, data)
		return data, SourceLive
	}

	s.logFallback("markets", err, zap.Strings("ids", ids))
	return MockMarketData(ids, s.now()), SourceMock
}

// GetPrice returns the current USD price of a coin. Upstream failures and
// zero prices fall back to the mock price, so the result is always positive.
func (s *MarketDataService) GetPrice(ctx context.Context, id string) decimal.Decimal {
	key := "price_" + id

	var cached decimal.Decimal
	if _, ok := s.lookup(ctx, key, &cached); ok {
		return cached
	}

	price, err := s.provider.GetPrice(ctx, id)
	if err == nil && price.GreaterThan(decimal.Zero) {
		s.store(ctx, key, price)
		return price
	}

	s.logFallback("price", err, zap.String("id", id))
	return MockPrice(id)
}

// SearchCoins returns up to ten matches, or nothing when the upstream fails
func (s *MarketDataService) SearchCoins(ctx context.Context, query string) []entities.CoinSearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return []entities.CoinSearchResult{}
	}
	results, err := s.provider.Search(ctx, query)
	if err != nil {
		s.logger.Warn("Coin search failed", zap.String("query", query), zap.Error(err))
		return []entities.CoinSearchResult{}
	}
	return results
}

// GetTrendingCoins returns market data for the trending coins
func (s *MarketDataService) GetTrendingCoins(ctx context.Context) []entities.MarketData {
	const key = "trending"

	var cached []entities.MarketData
	if _, ok := s.lookup(ctx, key, &cached); ok {
		return cached
	}

	ids, err := s.provider.TrendingIDs(ctx)
	if err != nil || len(ids) == 0 {
		s.logFallback("trending", err)
		return MockMarketData(TrendingFallbackIDs, s.now())
	}

	data, _ := s.marketData(ctx, ids)
	s.store(ctx, key, data)
	return data
}

// Refresh fetches the default coin set from the upstream, bypassing the
// cache. Its result is published only if no newer refresh has started in the
// meantime; superseded results are discarded.
func (s *MarketDataService) Refresh(ctx context.Context) RefreshResult {
	gen := s.started.Add(1)

	ctx, span := tracing.StartSpan(ctx, "market.Refresh")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.generation", int64(gen)))

	ids := s.DefaultIDs()
	source := SourceLive
	data, err := s.provider.GetMarkets(ctx, ids)
	if err != nil || len(data) == 0 {
		s.logFallback("refresh", err)
		data = MockMarketData(ids, s.now())
		source = SourceMock
	}

	result := RefreshResult{Generation: gen, Source: source, Data: data}

	s.latestMu.Lock()
	if gen != s.started.Load() || gen < s.latestGen {
		s.latestMu.Unlock()
		metrics.MarketRefreshDiscarded.Inc()
		s.logger.Debug("Discarding superseded market refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("newest", s.started.Load()))
		span.SetAttributes(attribute.Bool("market.discarded", true))
		return result
	}
	s.latest = data
	s.latestGen = gen
	s.latestMu.Unlock()

	if source == SourceLive {
		s.store(ctx, "markets_"+strings.Join(ids, ","), data)
	}
	metrics.MarketRefreshTotal.WithLabelValues(source).Inc()
	result.Applied = true
	return result
}

// Latest returns the newest applied refresh and its generation. Before the
// first refresh it returns mock data at generation zero.
func (s *MarketDataService) Latest() ([]entities.MarketData, uint64) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	if s.latest == nil {
		return MockMarketData(s.defaultIDs, s.now()), 0
	}
	return append([]entities.MarketData(nil), s.latest...), s.latestGen
}

// LatestPrices indexes the newest applied refresh by coin id
func (s *MarketDataService) LatestPrices() map[string]decimal.Decimal {
	data, _ := s.Latest()
	return entities.PriceMap(data)
}

func (s *MarketDataService) lookup(ctx context.Context, key string, dest interface{}) (string, bool) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(entry.storedAt) < s.ttl {
		if assign(dest, entry.value) {
			metrics.CacheRequests.WithLabelValues("memory", "hit").Inc()
			return SourceCache, true
		}
	}
	metrics.CacheRequests.WithLabelValues("memory", "miss").Inc()

	if s.shared == nil {
		return "", false
	}
	if err := s.shared.Get(ctx, key, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
		return "", false
	}
	metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
	s.mu.Lock()
	s.cache[key] = cacheEntry{value: deref(dest), storedAt: s.now()}
	s.mu.Unlock()
	return SourceRedis, true
}

func (s *MarketDataService) store(ctx context.Context, key string, value interface{}) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{value: value, storedAt: s.now()}
	s.mu.Unlock()

	if s.shared == nil {
		return
	}
	if err := s.shared.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("Failed to write shared market cache", zap.String("key", key), zap.Error(err))
	}
}

func (s *MarketDataService) logFallback(op string, err error, fields ...zap.Field) {
	err = domainerrors.MarketDataUnavailableError("coingecko", err)
	s.logger.Warn("Market data unavailable, serving mock data",
		append(fields, zap.String("op", op), zap.Error(err))...)
}

func assign(dest interface{}, value interface{}) bool {
	switch d := dest.(type) {
	case *[]entities.MarketData:
		v, ok := value.([]entities.MarketData)
		if ok {
			*d = v
		}
		return ok
	case *decimal.Decimal:
		v, ok := value.(decimal.Decimal)
		if ok {
			*d = v
		}
		return ok
	}
	return false
}

func deref(dest interface{}) interface{} {
	switch d := dest.(type) {
	case *[]entities.MarketData:
		return *d
	case *decimal.Decimal:
		return *d
	}
	return nil
}

func normalizeIDs(ids, fallback []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
