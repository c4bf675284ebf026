package portfolio_snapshot_worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/pkg/metrics"
)

// Engine reprices every agent and exposes the resulting snapshot
type Engine interface {
	RepriceAll(ctx context.Context) agent.RepriceResult
	Snapshot(ctx context.Context) *entities.EngineSnapshot
}

// Publisher receives each new snapshot. Optional.
type Publisher interface {
	Publish(ctx context.Context, snap *entities.EngineSnapshot) (bool, error)
}

// Worker reprices portfolios on the portfolio refresh interval and publishes
// the engine snapshot after each pass
type Worker struct {
	engine    Engine
	publisher Publisher
	interval  time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewWorker(engine Engine, publisher Publisher, interval time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		engine:    engine,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting portfolio snapshot worker", zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.logger.Info("Portfolio snapshot worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reprices all agents and publishes the snapshot
func (w *Worker) RunOnce(ctx context.Context) agent.RepriceResult {
	result := w.engine.RepriceAll(ctx)
	metrics.WorkerRunsTotal.WithLabelValues("portfolio_reprice", "ok").Inc()

	for _, exit := range result.Exits {
		w.logger.Info("Automatic safety exit",
			zap.String("agent_id", exit.AgentID),
			zap.String("exit_type", string(exit.Type)))
	}

	if w.publisher == nil {
		return result
	}
	if _, err := w.publisher.Publish(ctx, w.engine.Snapshot(ctx)); err != nil {
		w.logger.Warn("Failed to publish snapshot", zap.Error(err))
	}
	return result
}
