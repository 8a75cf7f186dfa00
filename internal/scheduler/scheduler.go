// Package scheduler runs independently timed periodic tasks. A slow or
// failing tick in one task never delays another, and a panic inside a tick
// is contained at the task boundary.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coldreach/internal/metrics"
)

type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	Log *zap.Logger
}

// Start launches one goroutine per task. Cancelling ctx stops the schedules,
// but an in-flight tick always runs to completion: a send that already left
// the SMTP server must still reach its state commit, so ticks receive a
// context detached from the shutdown cancellation.
func (s *Scheduler) Start(ctx context.Context, wg *sync.WaitGroup, tasks ...Task) {
	for _, t := range tasks {
		wg.Add(1)

		go func(t Task) {
			defer wg.Done()

			s.Log.Info("task scheduled",
				zap.String("task", t.Name),
				zap.Duration("interval", t.Interval),
			)

			ticker := time.NewTicker(t.Interval)
			defer ticker.Stop()

			tickCtx := context.WithoutCancel(ctx)

			for {
				select {
				case <-ctx.Done():
					s.Log.Info("task stopped", zap.String("task", t.Name))
					return

				case <-ticker.C:
					s.runOne(tickCtx, t)
				}
			}
		}(t)
	}
}

// runOne executes a single tick. Errors and panics are logged and counted;
// the schedule continues uninterrupted at its normal interval.
func (s *Scheduler) runOne(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerFaults.WithLabelValues(t.Name).Inc()
			s.Log.Error("task tick panicked",
				zap.String("task", t.Name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := t.Run(ctx); err != nil {
		metrics.SchedulerFaults.WithLabelValues(t.Name).Inc()
		s.Log.Error("task tick failed",
			zap.String("task", t.Name),
			zap.Error(err),
		)
	}
}
