package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/expression"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/notification"
)

// Config configures an on-error handler
type Config struct {
	Kind Kind
	Name string
	// Type is a comma separated list of error types, e.g. "CONNECTIVITY, HTTP:*"
	Type string
	// When is a boolean expression evaluated against the failed event
	When string
	// LogException defaults to true
	LogException *bool
	// EnableNotifications defaults to true
	EnableNotifications *bool
	Processors          []Processor
}

func (c Config) logException() bool {
	return c.LogException == nil || *c.LogException
}

func (c Config) notificationsEnabled() bool {
	return c.EnableNotifications == nil || *c.EnableNotifications
}

// OnErrorHandler is an acceptor of a Chain. Its Kind decides whether it marks
// faults handled, rolls back or commits transactions and which faults it may
// accept; the rest of the handling sequence is shared.
type OnErrorHandler struct {
	kind     Kind
	hooks    *hooks
	cfg      Config
	deps     Dependencies
	location component.Location
	key      string

	matcher         errortype.Matcher
	status          component.Status
	logger          *slog.Logger
	metrics         *metric.Metrics
	overloadSampler *rate.Limiter
	// overloadSuppressed counts overload lines logged without detail
	overloadSuppressed atomic.Int64
}

var _ Acceptor = (*OnErrorHandler)(nil)
var _ component.Lifecycle = (*OnErrorHandler)(nil)

// NewOnErrorHandler creates an uninitialised handler
func NewOnErrorHandler(cfg Config, deps Dependencies) *OnErrorHandler {
	deps = deps.WithDefaults()
	if cfg.Name == "" {
		cfg.Name = cfg.Kind.String()
	}
	cfg.Processors = append([]Processor(nil), cfg.Processors...)

	return &OnErrorHandler{
		kind:            cfg.Kind,
		hooks:           kindHooks[cfg.Kind],
		cfg:             cfg,
		deps:            deps,
		key:             cfg.Kind.String() + "/" + cfg.Name + "#" + uuid.NewString(),
		logger:          component.Logger(deps.Logger, "handler").With("handler", cfg.Name, "kind", cfg.Kind.String()),
		metrics:         deps.coreMetrics(),
		overloadSampler: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Kind returns the handler kind
func (h *OnErrorHandler) Kind() Kind { return h.kind }

// Name returns the configured name
func (h *OnErrorHandler) Name() string { return h.cfg.Name }

// HandlerKey identifies this handler instance in error context stacks
func (h *OnErrorHandler) HandlerKey() string { return h.key }

// State returns the lifecycle state
func (h *OnErrorHandler) State() component.State { return h.status.State() }

// Location returns where the handler sits inside its flow
func (h *OnErrorHandler) Location() component.Location {
	return h.location.Child("errorHandler").Child(h.cfg.Name)
}

// Matcher returns the compiled type matcher, nil when no type is configured
func (h *OnErrorHandler) Matcher() errortype.Matcher { return h.matcher }

// bind places an unplaced handler inside a flow
func (h *OnErrorHandler) bind(location component.Location) {
	if h.location.IsZero() {
		h.location = location
	}
}

// Initialise compiles the type matcher and the when expression
func (h *OnErrorHandler) Initialise() error {
	return h.status.Initialise("OnErrorHandler", func() error {
		if h.hooks == nil {
			return errors.WrapInvalid(fmt.Errorf("%w: unknown handler kind %d", errors.ErrInvalidConfig, h.kind),
				"OnErrorHandler", "Initialise", "validate kind")
		}
		if h.kind == KindCritical && h.hasFilters() {
			return errors.WrapInvalid(fmt.Errorf("%w: %s takes no type or when", errors.ErrInvalidConfig, h.kind),
				"OnErrorHandler", "Initialise", "validate filters")
		}
		for i, p := range h.cfg.Processors {
			if p == nil {
				return errors.WrapInvalid(fmt.Errorf("%w: processor %d of %s is nil", errors.ErrInvalidConfig, i, h.cfg.Name),
					"OnErrorHandler", "Initialise", "validate processors")
			}
		}

		if h.cfg.Type != "" {
			m, err := errortype.ParseMatcher(h.deps.Repository, h.cfg.Type)
			if err != nil {
				return errors.WrapInvalid(err, "OnErrorHandler", "Initialise", fmt.Sprintf("parse type %q", h.cfg.Type))
			}
			if h.kind == KindContinue {
				if err := h.rejectSourceResponse(m); err != nil {
					return err
				}
			}
			h.matcher = m
		}

		if h.cfg.When != "" {
			if h.deps.Evaluator == nil {
				ev, err := expression.NewExpressionEvaluator(expression.WithLogger(h.deps.Logger))
				if err != nil {
					return errors.WrapFatal(err, "OnErrorHandler", "Initialise", "create evaluator")
				}
				h.deps.Evaluator = ev
			}
			if c, ok := h.deps.Evaluator.(interface {
				Compile(string) (*expression.Compiled, error)
			}); ok {
				if _, err := c.Compile(h.cfg.When); err != nil {
					return errors.WrapInvalid(err, "OnErrorHandler", "Initialise", "compile when")
				}
			}
		}
		return nil
	})
}

// rejectSourceResponse fails when a continue handler names a source response type
func (h *OnErrorHandler) rejectSourceResponse(m errortype.Matcher) error {
	sourceResponse := h.deps.Repository.SourceResponseErrorType()
	for _, t := range errortype.Types(m) {
		if t.IsA(sourceResponse) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s %q cannot handle source response error type %s",
					errors.ErrInvalidConfig, h.kind, h.cfg.Name, t),
				"OnErrorHandler", "Initialise", "validate type")
		}
	}
	return nil
}

// Dispose releases the handler. A disposed handler cannot be initialised again.
func (h *OnErrorHandler) Dispose() error {
	return h.status.Dispose(nil)
}

// DuplicateFor returns an uninitialised copy placed at location, sharing the
// configuration and the processors.
func (h *OnErrorHandler) DuplicateFor(location component.Location) *OnErrorHandler {
	dup := NewOnErrorHandler(h.cfg, h.deps)
	dup.location = location
	return dup
}

func (h *OnErrorHandler) hasFilters() bool {
	return h.cfg.Type != "" || h.cfg.When != ""
}

// AcceptsAll reports whether the handler claims every event unconditionally
func (h *OnErrorHandler) AcceptsAll() bool {
	if h.hooks == nil || h.hooks.acceptsAll == nil {
		return false
	}
	return h.hooks.acceptsAll(h)
}

// effectivelyAcceptsAny reports a handler that claims (almost) every handleable
// fault without being the unconditional catch-all
func (h *OnErrorHandler) effectivelyAcceptsAny() bool {
	if h.AcceptsAll() || h.kind == KindCritical || h.cfg.When != "" {
		return false
	}
	if h.matcher == nil {
		return true
	}
	return errortype.IsAnyMatcher(h.matcher)
}

// Accept reports whether the handler claims evt: the kind must allow it and,
// when filters are configured, the error type or the when expression must match.
func (h *OnErrorHandler) Accept(evt *event.Event) bool {
	if h.hooks == nil || evt == nil || h.status.State() != component.StateInitialised {
		return false
	}
	if h.hooks.accept != nil && !h.hooks.accept(h, evt) {
		return false
	}
	if h.AcceptsAll() || !h.hasFilters() {
		return true
	}

	if e := evt.Error(); h.matcher != nil && e != nil && h.matcher.Match(e.Type) {
		return true
	}

	if h.cfg.When != "" {
		ok, err := h.deps.Evaluator.EvaluateBoolean(h.cfg.When, evt)
		if err != nil {
			h.logger.Warn("When expression failed", "when", h.cfg.When, "event_id", evt.ID(), "error", err)
			return false
		}
		return ok
	}
	return false
}

func (h *OnErrorHandler) isSourceError(evt *event.Event) bool {
	e := evt.Error()
	if e == nil {
		return false
	}
	return e.Type.IsA(h.deps.Repository.SourceErrorType()) || e.Type.IsA(h.deps.Repository.SourceResponseErrorType())
}

func (h *OnErrorHandler) scope() string {
	return h.location.Flow
}

func (h *OnErrorHandler) coreType(name string) *errortype.ErrorType {
	t, _ := h.deps.Repository.LookupErrorType(component.NewIdentifier(component.DefaultNamespace, name))
	return t
}

func (h *OnErrorHandler) internalType(name string) *errortype.ErrorType {
	t, _ := h.deps.Repository.GetErrorType(component.NewIdentifier(component.DefaultNamespace, name))
	return t
}

// Route handles ex and reports the outcome to exactly one of the callbacks:
// onSuccess with the resulting event when the fault ends up handled, onError
// with the fault to propagate otherwise. The callbacks may run on another
// goroutine when an AsyncProcessor of the sub-chain completes there.
func (h *OnErrorHandler) Route(
	ctx context.Context,
	ex *event.MessagingException,
	onSuccess func(*event.Event),
	onError func(*event.MessagingException),
) {
	if ex.Event() == nil {
		ex.SetEvent(event.New(nil))
	}
	if err := h.status.Require("OnErrorHandler", "Route"); err != nil {
		onError(h.failure(ctx, ex, ex.Event(), err))
		return
	}
	if depth := ex.Event().Context().Depth; depth >= h.deps.MaxNestingDepth {
		cause := errors.Wrap(fmt.Errorf("%w: depth %d", errors.ErrNestingDepthExceeded, depth),
			"OnErrorHandler", "Route", "enter handler")
		onError(h.failure(ctx, ex, ex.Event(), cause))
		return
	}

	start := time.Now()
	nested := event.IsHandling(ex)

	succeed := func(result *event.Event) {
		h.finish(ctx, ex, ex, start, nested)
		onSuccess(result)
	}
	fail := func(failed *event.MessagingException) {
		h.finish(ctx, ex, failed, start, nested)
		onError(failed)
	}

	evt := event.AddContext(h, ex, succeed, fail)

	if h.cfg.notificationsEnabled() && !nested {
		h.notify(ctx, notification.ActionHandlingStart, ex)
		if security := h.coreType(errortype.Security); security != nil && ex.ErrorType().IsA(security) {
			h.notify(ctx, notification.ActionSecurity, ex)
		}
	}
	if h.hooks.markHandled {
		ex.MarkHandled()
	}
	if h.kind == KindCritical || h.cfg.logException() {
		h.logException(ctx, ex)
	}
	if h.hooks.fatal {
		h.deps.Statistics.IncFatalError()
		if h.metrics != nil {
			h.metrics.RecordCritical(ex.ErrorType().String())
		}
	} else {
		h.deps.Statistics.IncExecutionError()
	}
	if h.hooks.beforeRouting != nil {
		h.hooks.beforeRouting(ctx, h, ex)
	}

	child := evt.ChildContext(h.Location())
	runProcessors(ctx, h.cfg.Processors, 0, child, func(result *event.Event, err error) {
		h.afterRouting(ctx, ex, evt, result, err, fail)
	})
}

func (h *OnErrorHandler) afterRouting(
	ctx context.Context,
	ex *event.MessagingException,
	evt, result *event.Event,
	err error,
	fail func(*event.MessagingException),
) {
	if err != nil {
		h.resolveFailure(ctx, ex, evt, err, fail)
		return
	}

	result = adopt(evt, result.ParentContext())
	if h.hooks.afterRouting != nil {
		var hookErr error
		if result, hookErr = h.hooks.afterRouting(ctx, h, result); hookErr != nil {
			h.resolveFailure(ctx, ex, evt, hookErr, fail)
			return
		}
	}

	if err := event.ResolveHandling(h, result); err != nil {
		h.logger.Error("Error handler lost its context", "event_id", result.ID(), "error", err)
		fail(h.failure(ctx, ex, evt, err))
	}
}

// resolveFailure propagates a fault raised by the handler itself. The new
// fault is marked as raised in an error handler, keeps ex as suppressed cause
// and forces a rollback of the current transaction.
func (h *OnErrorHandler) resolveFailure(
	ctx context.Context,
	ex *event.MessagingException,
	evt *event.Event,
	err error,
	fail func(*event.MessagingException),
) {
	failed := h.failure(ctx, ex, evt, err)

	if tx, ok := h.deps.Transactions.GetCurrentTransaction(ctx); ok {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			h.logger.Error("Transaction rollback failed", "transaction", tx.ID(), "error", rbErr)
			failed.AddSuppressed(rbErr)
		}
	}

	if rerr := event.ResolveFailure(h, failed); rerr != nil {
		h.logger.Error("Error handler lost its context", "event_id", evt.ID(), "error", rerr)
		fail(failed)
	}
}

// failure builds the exception for a fault raised while handling ex
func (h *OnErrorHandler) failure(ctx context.Context, ex *event.MessagingException, evt *event.Event, err error) *event.MessagingException {
	failed := h.deps.Resolver.Resolve(err, evt, h.Location())
	if fe := failed.Event(); fe == nil || fe.CorrelationID() != evt.CorrelationID() || fe.ErrorContext() != evt.ErrorContext() {
		var e *event.Error
		if fe != nil {
			e = fe.Error()
		}
		failed.SetEvent(evt.WithError(e))
	}

	failed.SetInErrorHandler(true)
	if failed != ex {
		failed.AddSuppressed(ex)
	}

	h.logger.Log(ctx, slog.LevelError, "Error handler failed",
		"error_type", failed.ErrorType(),
		"original_error_type", ex.ErrorType(),
		"event_id", evt.ID(),
		"error", err)
	return failed
}

// adopt keeps result in the lineage of evt. A sub-chain that produced an
// unrelated event only contributes its payload.
func adopt(evt, result *event.Event) *event.Event {
	if result == nil {
		return evt
	}
	if result.CorrelationID() == evt.CorrelationID() && result.ErrorContext() == evt.ErrorContext() {
		return result
	}
	return evt.WithPayload(result.Payload())
}

func (h *OnErrorHandler) logException(ctx context.Context, ex *event.MessagingException) {
	if h.hooks.logException != nil {
		h.hooks.logException(ctx, h, ex)
		return
	}

	attrs := []any{
		"error_type", ex.ErrorType(),
		"event_id", ex.Event().ID(),
		"correlation_id", ex.Event().CorrelationID(),
		"error", ex.Cause(),
	}
	if loc := ex.FailingComponent(); !loc.IsZero() {
		attrs = append(attrs, "failing_component", loc.String())
	}
	h.logger.Log(ctx, h.hooks.logLevel, "Error caught by handler", attrs...)
}

func (h *OnErrorHandler) notify(ctx context.Context, action notification.Action, ex *event.MessagingException) {
	h.deps.Notifier.FireNotification(ctx, notification.New(action, h.cfg.Name, nil, ex))
}

// finish records the outcome of one handling and fires the end notification
func (h *OnErrorHandler) finish(ctx context.Context, ex, result *event.MessagingException, start time.Time, nested bool) {
	outcome := "propagated"
	switch {
	case result != ex:
		outcome = "failed"
	case result.Handled():
		outcome = "handled"
	}

	if h.metrics != nil {
		h.metrics.RecordResolution(h.kind.String(), ex.ErrorType().String(), outcome, time.Since(start))
	}
	if h.cfg.notificationsEnabled() && !nested {
		h.notify(ctx, notification.ActionHandlingEnd, result)
	}
	h.logger.Debug("Error handling finished", "outcome", outcome, "event_id", ex.Event().ID(),
		"duration", time.Since(start))
}
