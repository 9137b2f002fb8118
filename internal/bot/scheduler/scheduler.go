package scheduler

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// taskTimeout bounds how long a single delayed task may run once its timer fires.
const taskTimeout = 10 * time.Second

// Scheduler runs fire-and-forget tasks after a delay. Callers never wait for a task and a
// task's failure or panic never reaches the code that scheduled it.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	logger *zap.Logger
}

// New creates a scheduler whose pending tasks are dropped once Close is called.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("scheduler"),
	}
}

// After schedules task to run once delay has elapsed.
func (s *Scheduler) After(delay time.Duration, task func(ctx context.Context)) {
	s.wg.Go(func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in scheduled task", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(s.ctx, taskTimeout)
		defer cancel()

		task(ctx)
	})
}

// Close drops tasks that have not fired yet and waits for running ones to return.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
	s.logger.Debug("Scheduler stopped")
}
