package system

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/pkg/retry"
	"github.com/mulesoft/mule-sub047/pkg/worker"
	"github.com/mulesoft/mule-sub047/transaction"
)

// SchedulerName names the scheduler acquired by the strategy
const SchedulerName = "system-reconnect"

// Reconnectable is a resource that can re-establish its connection.
// *natsclient.Client satisfies it.
type Reconnectable interface {
	Reconnect(ctx context.Context) error
}

type reconnectError struct {
	err    error
	target Reconnectable
}

func (e *reconnectError) Error() string { return e.err.Error() }

func (e *reconnectError) Unwrap() error { return e.err }

func (e *reconnectError) Reconnect(ctx context.Context) error { return e.target.Reconnect(ctx) }

// WithReconnect attaches the resource that raised err so that the strategy can
// reconnect it.
func WithReconnect(err error, target Reconnectable) error {
	if err == nil || target == nil {
		return err
	}
	return &reconnectError{err: err, target: target}
}

// Config configures the Strategy
type Config struct {
	Retry     retry.Config `yaml:"retry"`
	Workers   int          `yaml:"workers"`
	QueueSize int          `yaml:"queue_size"`
}

// DefaultConfig returns the reconnection policy and a single worker
func DefaultConfig() Config {
	return Config{Retry: retry.Reconnect(), Workers: 1, QueueSize: 16}
}

// Dependencies are the collaborators of the Strategy. Zero fields get defaults,
// except Schedulers which falls back to a PoolSchedulerFactory sized by Config.
type Dependencies struct {
	Repository      errortype.Repository
	Locator         *errortype.Locator
	Notifier        notification.Dispatcher
	Transactions    transaction.Coordinator
	Schedulers      worker.SchedulerFactory
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Strategy handles faults that have no flow error handler
type Strategy struct {
	cfg          Config
	deps         Dependencies
	connectivity *errortype.ErrorType

	status  component.Status
	logger  *slog.Logger
	metrics *metric.Metrics

	mu        sync.Mutex
	scheduler worker.Scheduler
}

var _ component.Lifecycle = (*Strategy)(nil)

// New creates an uninitialised strategy
func New(cfg Config, deps Dependencies) *Strategy {
	if deps.Repository == nil {
		deps.Repository = errortype.NewCoreRepository()
	}
	if deps.Locator == nil {
		deps.Locator = errortype.NewLocator(deps.Repository)
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Nop{}
	}
	if deps.Transactions == nil {
		deps.Transactions = transaction.ContextCoordinator{}
	}
	if deps.Schedulers == nil {
		deps.Schedulers = &worker.PoolSchedulerFactory{
			Workers:         cfg.Workers,
			QueueSize:       cfg.QueueSize,
			MetricsRegistry: deps.MetricsRegistry,
			Logger:          deps.Logger,
		}
	}

	s := &Strategy{
		cfg:    cfg,
		deps:   deps,
		logger: component.Logger(deps.Logger, "system-strategy"),
	}
	s.connectivity, _ = deps.Repository.GetErrorType(
		component.NewIdentifier(component.DefaultNamespace, errortype.Connectivity))
	if deps.MetricsRegistry != nil {
		s.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return s
}

// State returns the lifecycle state of the strategy
func (s *Strategy) State() component.State { return s.status.State() }

// Initialise acquires the reconnection scheduler. Failing to acquire it is fatal.
func (s *Strategy) Initialise() error {
	return s.status.Initialise("Strategy", func() error {
		if err := s.cfg.Retry.Validate(); err != nil {
			return err
		}
		scheduler, err := s.deps.Schedulers.NewScheduler(context.Background(), SchedulerName)
		if err != nil {
			return errors.WrapFatal(err, "Strategy", "Initialise", "acquire scheduler")
		}

		s.mu.Lock()
		s.scheduler = scheduler
		s.mu.Unlock()
		return nil
	})
}

// Dispose stops the scheduler without waiting for running reconnections
func (s *Strategy) Dispose() error {
	return s.status.Dispose(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.scheduler == nil {
			return nil
		}
		err := s.scheduler.Stop(0)
		s.scheduler = nil
		return err
	})
}

// HandleException handles err raised outside a flow. rollback, when set, is
// called before the transaction bound to ctx is rolled back; a failed rollback
// is kept as suppressed cause of the returned exception. When ctx carries a
// current event, the exception's Event is that event with the fault attached,
// otherwise it is nil.
func (s *Strategy) HandleException(ctx context.Context, err error, rollback func()) *event.MessagingException {
	t := s.deps.Locator.LookupErrorType(err)
	evt, hasEvent := event.Current(ctx)

	ex := event.AsMessagingException(err, evt)
	s.deps.Notifier.FireNotification(ctx, notification.New(notification.ActionSystemException, "system", evt, ex))
	s.logger.Error("System exception", "error_type", t, "error", err)
	if s.metrics != nil {
		s.metrics.RecordSystemError(t.String())
	}

	if rollback != nil {
		rollback()
	}
	if tx, ok := s.deps.Transactions.GetCurrentTransaction(ctx); ok {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error("Transaction rollback failed", "transaction", tx.ID(), "error", rbErr)
			ex.AddSuppressed(rbErr)
		}
	}

	if hasEvent {
		ex.SetEvent(evt.WithError(event.NewError(t, err, ex.FailingComponent())))
	}

	if s.connectivity != nil && t.IsA(s.connectivity) {
		s.reconnect(err)
	}
	return ex
}

func (s *Strategy) reconnect(err error) {
	var target Reconnectable
	if !stderrors.As(err, &target) {
		s.logger.Warn("Connectivity failure without a reconnectable resource", "error", err)
		return
	}

	s.mu.Lock()
	scheduler := s.scheduler
	s.mu.Unlock()
	if scheduler == nil {
		s.logger.Warn("Reconnection skipped, strategy not running", "error", err)
		return
	}

	cfg := s.cfg.Retry
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		s.logger.Warn("Reconnection attempt failed", "attempt", attempt, "next", next, "error", err)
	}

	submitErr := scheduler.Submit(func(ctx context.Context) error {
		err := retry.Do(ctx, cfg, func() error { return target.Reconnect(ctx) })
		s.recordReconnection(err)
		if err != nil {
			s.logger.Error("Reconnection failed", "error", err)
			return err
		}
		s.logger.Info("Reconnected")
		return nil
	})
	if submitErr != nil {
		s.logger.Warn("Reconnection rejected", "error", submitErr)
		if s.metrics != nil {
			s.metrics.RecordReconnection("rejected")
		}
	}
}

func (s *Strategy) recordReconnection(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RecordReconnection("success")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordReconnection("cancelled")
	default:
		s.metrics.RecordReconnection("exhausted")
	}
}
