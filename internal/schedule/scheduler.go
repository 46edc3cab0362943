// Package schedule runs the sheet sync on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
)

type SyncFunc func(ctx context.Context) error

type Scheduler struct {
	scheduler *gocron.Scheduler
	run       SyncFunc
	timeout   time.Duration
}

// New schedules run on expr (standard 5-field cron, UTC). A run still in
// progress when the next tick fires makes that tick a no-op.
func New(expr string, timeout time.Duration, run SyncFunc) (*Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	s := &Scheduler{
		scheduler: scheduler,
		run:       run,
		timeout:   timeout,
	}

	if _, err := scheduler.Cron(expr).Do(s.tick); err != nil {
		return nil, fmt.Errorf("failed to schedule sync %q: %w", expr, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.run(ctx); err != nil {
		logger.Error.Printf("Scheduled sync failed: %v", err)
		return
	}
	logger.Info.Printf("Scheduled sync finished in %s", time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// RunNow triggers every job immediately. The scheduler must be started.
func (s *Scheduler) RunNow() {
	s.scheduler.RunAll()
}

func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
