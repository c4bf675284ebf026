package streak_worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/pkg/metrics"
)

// StreakRoller closes the current day bucket for every agent
type StreakRoller interface {
	RollStreaks(ctx context.Context) int
}

// Worker rolls agent streaks on a cron schedule with a seconds field,
// evaluated in UTC so the roll lines up with the daily trade limit window
type Worker struct {
	roller   StreakRoller
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewWorker(roller StreakRoller, schedule string, logger *zap.Logger) *Worker {
	return &Worker{
		roller:   roller,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		logger:   logger,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Streak worker started", zap.String("schedule", w.schedule))
	return nil
}

// Stop waits for a running roll to finish
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Streak worker stopped")
}

func (w *Worker) RunOnce(ctx context.Context) int {
	rolled := w.roller.RollStreaks(ctx)
	metrics.WorkerRunsTotal.WithLabelValues("streak_roll", "ok").Inc()
	w.logger.Info("Agent streaks rolled", zap.Int("agents", rolled))
	return rolled
}
