package handler

import (
	"log/slog"
	"sync"

	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/transaction"
)

// DefaultMaxNestingDepth bounds how deep handler sub-chains may nest
const DefaultMaxNestingDepth = 32

// Evaluator evaluates `when` expressions. *expression.Evaluator satisfies it.
type Evaluator interface {
	EvaluateBoolean(expr string, evt *event.Event) (bool, error)
}

// Statistics receives failure counts. *metric.FlowStatistics satisfies it.
type Statistics interface {
	IncExecutionError()
	IncFatalError()
}

// Dependencies are the collaborators shared by the handlers of a chain.
// Zero fields are filled with defaults; the default repository and locator are
// process-wide so that handlers built without explicit dependencies agree on
// error type identity.
type Dependencies struct {
	Repository      errortype.Repository
	Locator         *errortype.Locator
	Resolver        *Resolver
	Evaluator       Evaluator
	Transactions    transaction.Coordinator
	Notifier        notification.Dispatcher
	Statistics      Statistics
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	MaxNestingDepth int
}

var (
	defaultRepository = sync.OnceValue(func() errortype.Repository {
		return errortype.NewCoreRepository()
	})
	defaultLocator = sync.OnceValue(func() *errortype.Locator {
		return errortype.NewLocator(defaultRepository())
	})
)

// DefaultRepository returns the process-wide repository used when none is configured
func DefaultRepository() errortype.Repository {
	return defaultRepository()
}

// GetLogger returns the configured logger or slog.Default()
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// WithDefaults returns a copy with every zero field filled
func (d Dependencies) WithDefaults() Dependencies {
	if d.Repository == nil {
		d.Repository = defaultRepository()
		if d.Locator == nil {
			d.Locator = defaultLocator()
		}
	}
	if d.Locator == nil {
		d.Locator = errortype.NewLocator(d.Repository)
	}
	if d.Resolver == nil {
		d.Resolver = NewResolver(d.Locator)
	}
	if d.Transactions == nil {
		d.Transactions = transaction.ContextCoordinator{}
	}
	if d.Notifier == nil {
		d.Notifier = notification.Nop{}
	}
	if d.Statistics == nil {
		d.Statistics = nopStatistics{}
	}
	if d.MaxNestingDepth <= 0 {
		d.MaxNestingDepth = DefaultMaxNestingDepth
	}
	d.Logger = d.GetLogger()
	return d
}

func (d Dependencies) coreMetrics() *metric.Metrics {
	if d.MetricsRegistry == nil {
		return nil
	}
	return d.MetricsRegistry.CoreMetrics()
}

type nopStatistics struct{}

func (nopStatistics) IncExecutionError() {}
func (nopStatistics) IncFatalError()     {}
