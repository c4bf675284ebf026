package market_refresh_worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/pkg/metrics"
)

// Refresher fetches the default market snapshot
type Refresher interface {
	Refresh(ctx context.Context) market.RefreshResult
}

// Worker refreshes market data on a fixed interval
type Worker struct {
	refresher Refresher
	interval  time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewWorker(refresher Refresher, interval time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start refreshes once immediately, then on every tick
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting market refresh worker", zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop and waits for an in-flight refresh
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.logger.Info("Market refresh worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.RunOnce(ctx)

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

// RunOnce performs a single refresh
func (w *Worker) RunOnce(ctx context.Context) market.RefreshResult {
	result := w.refresher.Refresh(ctx)
	if !result.Applied {
		metrics.WorkerRunsTotal.WithLabelValues("market_refresh", "discarded").Inc()
		w.logger.Debug("Market refresh superseded", zap.Uint64("generation", result.Generation))
		return result
	}

	metrics.WorkerRunsTotal.WithLabelValues("market_refresh", result.Source).Inc()
	w.logger.Debug("Market data refreshed",
		zap.Uint64("generation", result.Generation),
		zap.String("source", result.Source),
		zap.Int("assets", len(result.Data)))
	return result
}
