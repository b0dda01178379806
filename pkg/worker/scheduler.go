package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mulesoft/mule-sub047/metric"
)

// Task is a unit of work run by a Scheduler.
type Task func(ctx context.Context) error

// Scheduler runs tasks off the caller's goroutine. Stop releases its workers.
type Scheduler interface {
	Submit(task Task) error
	Stop(timeout time.Duration) error
}

// SchedulerFactory hands out schedulers with a bounded lifetime, owned by the caller.
type SchedulerFactory interface {
	NewScheduler(ctx context.Context, name string) (Scheduler, error)
}

// PoolScheduler is a Scheduler backed by a Pool of tasks.
type PoolScheduler struct {
	name   string
	pool   *Pool[Task]
	logger *slog.Logger
}

// Submit queues a task. It fails with ErrQueueFull when the scheduler is saturated.
func (s *PoolScheduler) Submit(task Task) error {
	if task == nil {
		return ErrNilProcessor
	}
	return s.pool.Submit(task)
}

// Stop stops the underlying pool.
func (s *PoolScheduler) Stop(timeout time.Duration) error {
	return s.pool.Stop(timeout)
}

// Stats exposes the pool statistics of the scheduler.
func (s *PoolScheduler) Stats() PoolStats {
	return s.pool.Stats()
}

// PoolSchedulerFactory creates started PoolSchedulers.
type PoolSchedulerFactory struct {
	Workers         int
	QueueSize       int
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// NewScheduler creates and starts a scheduler named name.
func (f *PoolSchedulerFactory) NewScheduler(ctx context.Context, name string) (Scheduler, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("scheduler", name)

	run := func(ctx context.Context, task Task) error {
		err := task(ctx)
		if err != nil {
			logger.Debug("Scheduled task failed", "error", err)
		}
		return err
	}

	var opts []Option[Task]
	if f.MetricsRegistry != nil {
		opts = append(opts, WithMetricsRegistry[Task](f.MetricsRegistry, metric.SanitizeName(name)))
	}

	pool := NewPool(f.Workers, f.QueueSize, run, opts...)
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}

	return &PoolScheduler{name: name, pool: pool, logger: logger}, nil
}
