// Package agent owns the engine state: the local user, their agents, the
// synthetic crowd and the derived crowd and leaderboard views. Commands are the
// only way to mutate it; every read returns deep copies.
package agent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
	"github.com/Mikespro21/ARC/internal/domain/services/analytics"
	"github.com/Mikespro21/ARC/internal/domain/services/crowd"
	"github.com/Mikespro21/ARC/internal/domain/services/leaderboard"
	"github.com/Mikespro21/ARC/internal/domain/services/ledger"
	"github.com/Mikespro21/ARC/pkg/metrics"
)

// PriceSource provides execution and valuation prices
type PriceSource interface {
	GetPrice(ctx context.Context, id string) decimal.Decimal
	LatestPrices() map[string]decimal.Decimal
	Latest() ([]entities.MarketData, uint64)
}

// Config holds engine limits and simulation parameters
type Config struct {
	MaxAgents       int
	MinAgentBalance decimal.Decimal
	DefaultBaseline decimal.Decimal
	TradingFee      decimal.Decimal // fraction, e.g. 0.001
	Slippage        decimal.Decimal // fraction
	HistoryLimit    int

	DemoMode              bool
	CrowdSize             int
	CrowdSeed             int64
	CrowdTradeProbability float64
	AvgTradesPerDay       decimal.Decimal
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		MaxAgents:             10,
		MinAgentBalance:       decimal.NewFromInt(100),
		DefaultBaseline:       decimal.NewFromInt(2000),
		TradingFee:            decimal.Zero,
		Slippage:              decimal.Zero,
		HistoryLimit:          ledger.DefaultHistoryLimit,
		DemoMode:              true,
		CrowdSize:             96,
		CrowdSeed:             42,
		CrowdTradeProbability: 0.05,
		AvgTradesPerDay:       decimal.RequireFromString("8.5"),
	}
}

type record struct {
	owner string // immutable
	mu    sync.Mutex
	agent *entities.Agent
}

func (r *record) clone() *entities.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent.Clone()
}

// Service is the engine state container
type Service struct {
	cfg    Config
	prices PriceSource
	calc   *analytics.PerformanceCalculator
	logger *zap.Logger
	now    func() time.Time

	// mu guards the user and the agent registry. Lock order is mu, then a
	// record lock. The views lock is never held together with a record lock.
	mu        sync.RWMutex
	user      entities.User
	records   map[string]*record
	userOrder []string
	crowdIDs  []string

	pipelineMu sync.Mutex

	viewsMu sync.RWMutex
	views   views

	rngMu sync.Mutex
	rng   *rand.Rand
}

type views struct {
	crowd        entities.CrowdMetrics
	leaderboards entities.Leaderboards
	version      uint64
}

// NewService creates the engine for user. In demo mode the seeded crowd is
// generated at current prices before the first views are computed.
func NewService(cfg Config, user entities.User, prices PriceSource, logger *zap.Logger) *Service {
	s := &Service{
		cfg:     cfg,
		prices:  prices,
		calc:    analytics.NewPerformanceCalculator(logger),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		user:    user,
		records: make(map[string]*record),
		rng:     rand.New(rand.NewSource(cfg.CrowdSeed + 1)),
	}

	if cfg.DemoMode && cfg.CrowdSize > 0 {
		population := crowd.GeneratePopulation(crowd.PopulationConfig{
			Size:   cfg.CrowdSize,
			Seed:   cfg.CrowdSeed,
			Prices: prices.LatestPrices(),
			Now:    s.now(),
		})
		for _, a := range population {
			s.records[a.ID] = &record{owner: a.UserID, agent: a}
			s.crowdIDs = append(s.crowdIDs, a.ID)
		}
		logger.Info("Generated crowd population",
			zap.Int("size", len(population)),
			zap.Int64("seed", cfg.CrowdSeed))
	}

	s.recompute()
	s.refreshAllPerformance()
	s.recompute()
	return s
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Config returns the engine configuration
func (s *Service) Config() Config {
	return s.cfg
}

// User returns the current user
func (s *Service) User() entities.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ListAgents returns the user's agents in creation order
func (s *Service) ListAgents() []*entities.Agent {
	recs := s.userRecords()
	out := make([]*entities.Agent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.clone())
	}
	return out
}

// CrowdAgents returns the synthetic crowd
func (s *Service) CrowdAgents() []*entities.Agent {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.crowdIDs))
	for _, id := range s.crowdIDs {
		recs = append(recs, s.records[id])
	}
	s.mu.RUnlock()

	out := make([]*entities.Agent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.clone())
	}
	return out
}

// GetAgent returns any agent, user-owned or crowd, by id
func (s *Service) GetAgent(ctx context.Context, id string) (*entities.Agent, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domainerrors.AgentNotFoundError(id)
	}
	return rec.clone(), nil
}

// TradeHistory returns an agent's trades newest first, at most limit when
// limit is positive.
func (s *Service) TradeHistory(ctx context.Context, id string, limit int) ([]entities.Trade, error) {
	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	trades := agent.Portfolio.Trades
	out := make([]entities.Trade, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		out = append(out, trades[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CrowdMetrics returns the latest crowd statistics
func (s *Service) CrowdMetrics() entities.CrowdMetrics {
	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()
	return s.views.crowd
}

// Leaderboard returns the ranking for one period
func (s *Service) Leaderboard(period entities.LeaderboardPeriod) ([]entities.LeaderboardEntry, error) {
	if !period.IsValid() {
		return nil, domainerrors.ValidationError("period", "period must be daily, weekly, monthly or yearly")
	}
	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()
	return s.views.leaderboards.ForPeriod(period), nil
}

// Snapshot assembles the read-only view of the whole engine
func (s *Service) Snapshot(ctx context.Context) *entities.EngineSnapshot {
	market, _ := s.prices.Latest()
	agents := s.ListAgents()

	s.viewsMu.RLock()
	v := s.views
	s.viewsMu.RUnlock()

	return &entities.EngineSnapshot{
		User:         s.User(),
		Agents:       agents,
		CrowdMetrics: v.crowd,
		Leaderboards: v.leaderboards,
		MarketData:   market,
		Version:      v.version,
		GeneratedAt:  s.now(),
	}
}

// ViewsVersion increases every time the crowd and leaderboard views are rebuilt
func (s *Service) ViewsVersion() uint64 {
	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()
	return s.views.version
}

func (s *Service) userRecords() []*record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*record, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		recs = append(recs, s.records[id])
	}
	return recs
}

func (s *Service) allRecords() []*record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*record, 0, len(s.userOrder)+len(s.crowdIDs))
	for _, id := range s.userOrder {
		recs = append(recs, s.records[id])
	}
	for _, id := range s.crowdIDs {
		recs = append(recs, s.records[id])
	}
	return recs
}

// userRecord resolves an agent the user may command. Crowd agents are read-only.
func (s *Service) userRecord(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.owner != s.user.ID {
		return nil, domainerrors.AgentNotFoundError(id)
	}
	return rec, nil
}

func (s *Service) baseline(a *entities.Agent) decimal.Decimal {
	if a.InitialBalance.GreaterThan(decimal.Zero) {
		return a.InitialBalance
	}
	return s.cfg.DefaultBaseline
}

// refreshPerformance recomputes a's performance. Caller holds the record lock.
func (s *Service) refreshPerformance(a *entities.Agent, crowdMetrics entities.CrowdMetrics) {
	perf, err := s.calc.ComputePerformance(a, s.baseline(a), crowdMetrics)
	if err != nil {
		s.logger.Warn("Keeping previous performance", zap.String("agent_id", a.ID), zap.Error(err))
		return
	}
	a.Performance = perf
}

func (s *Service) refreshAllPerformance() {
	crowdMetrics := s.CrowdMetrics()
	for _, rec := range s.allRecords() {
		rec.mu.Lock()
		s.refreshPerformance(rec.agent, crowdMetrics)
		rec.mu.Unlock()
	}
}

// recompute rebuilds the crowd metrics and leaderboards from the current
// agents. Runs are serialized, so the run that follows the last mutation
// always publishes last.
func (s *Service) recompute() {
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	start := time.Now()
	recs := s.allRecords()
	agents := make([]*entities.Agent, 0, len(recs))
	for _, rec := range recs {
		agents = append(agents, rec.clone())
	}

	crowdMetrics := crowd.Aggregate(agents, s.cfg.AvgTradesPerDay)
	boards := leaderboard.RankAll(agents)

	s.viewsMu.Lock()
	s.views = views{
		crowd:        crowdMetrics,
		leaderboards: boards,
		version:      s.views.version + 1,
	}
	s.viewsMu.Unlock()

	s.observe(agents, crowdMetrics)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
}

func (s *Service) observe(agents []*entities.Agent, crowdMetrics entities.CrowdMetrics) {
	counts := map[string]map[entities.AgentStatus]int{"user": {}, "crowd": {}}
	for _, a := range agents {
		owner := "user"
		if a.UserID == crowd.CrowdUserID {
			owner = "crowd"
		}
		counts[owner][a.Status]++
	}
	for owner, byStatus := range counts {
		for _, status := range []entities.AgentStatus{entities.AgentStatusActive, entities.AgentStatusPaused, entities.AgentStatusExited} {
			metrics.AgentsGauge.WithLabelValues(owner, string(status)).Set(float64(byStatus[status]))
		}
	}
	vol, _ := crowdMetrics.TotalVolume.Float64()
	metrics.CrowdVolumeGauge.Set(vol)
}
