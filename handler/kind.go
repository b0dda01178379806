package handler

import (
	"context"
	"log/slog"

	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
)

// Kind selects the behaviour of an OnErrorHandler
type Kind int

const (
	// KindPropagate re-raises the fault after its sub-chain, rolling back the
	// owned transaction first.
	KindPropagate Kind = iota
	// KindContinue marks the fault handled and clears it from the event.
	KindContinue
	// KindCritical is the synthetic first acceptor of every chain. It only
	// accepts CRITICAL faults and always re-raises them.
	KindCritical
)

// String returns the configuration name of the kind
func (k Kind) String() string {
	switch k {
	case KindPropagate:
		return "on-error-propagate"
	case KindContinue:
		return "on-error-continue"
	case KindCritical:
		return "on-critical-error"
	default:
		return "unknown"
	}
}

// ParseKind parses the configuration name of a kind. "continue" and
// "propagate" are accepted as short forms.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "on-error-propagate", "propagate":
		return KindPropagate, true
	case "on-error-continue", "continue":
		return KindContinue, true
	case "on-critical-error", "critical":
		return KindCritical, true
	}
	return 0, false
}

// hooks are the points where the kinds differ. Every field is optional.
type hooks struct {
	// markHandled marks the exception handled before routing
	markHandled bool
	// logLevel is used when logging the caught exception
	logLevel slog.Level
	// acceptsAll reports whether h claims every event
	acceptsAll func(h *OnErrorHandler) bool
	// accept vetoes events before the type and when filters run
	accept func(h *OnErrorHandler, evt *event.Event) bool
	// logException replaces the default logging
	logException func(ctx context.Context, h *OnErrorHandler, ex *event.MessagingException)
	// beforeRouting runs after the exception is recorded and before the sub-chain
	beforeRouting func(ctx context.Context, h *OnErrorHandler, ex *event.MessagingException)
	// afterRouting transforms the sub-chain result. A returned error is a
	// failure of the handler itself.
	afterRouting func(ctx context.Context, h *OnErrorHandler, result *event.Event) (*event.Event, error)
	// fatal counts the fault as fatal instead of as an execution error
	fatal bool
}

var kindHooks = map[Kind]*hooks{
	KindPropagate: {
		logLevel: slog.LevelError,
		acceptsAll: func(h *OnErrorHandler) bool {
			return !h.hasFilters()
		},
		beforeRouting: rollbackOwned,
	},
	KindContinue: {
		markHandled: true,
		logLevel:    slog.LevelWarn,
		acceptsAll:  func(*OnErrorHandler) bool { return false },
		accept: func(h *OnErrorHandler, evt *event.Event) bool {
			return !h.isSourceError(evt)
		},
		afterRouting: clearAndCommit,
	},
	KindCritical: {
		logLevel:   slog.LevelError,
		acceptsAll: func(*OnErrorHandler) bool { return false },
		accept: func(h *OnErrorHandler, evt *event.Event) bool {
			e := evt.Error()
			return e != nil && e.Type.IsA(h.deps.Repository.CriticalErrorType())
		},
		logException: logCritical,
		fatal:        true,
	},
}

// rollbackOwned rolls back the transaction begun by the handler's scope unless
// the fault is a redelivery exhaustion.
func rollbackOwned(ctx context.Context, h *OnErrorHandler, ex *event.MessagingException) {
	t := ex.ErrorType()
	if exhausted := h.coreType(errortype.RedeliveryExhausted); exhausted != nil && t.IsA(exhausted) {
		h.logger.Debug("Propagating without rollback", "branch", "continue", "error_type", t)
		return
	}

	tx, ok := h.deps.Transactions.GetCurrentTransaction(ctx)
	if !ok || !h.deps.Transactions.IsOwner(ctx, h.scope()) {
		h.logger.Debug("Propagating without rollback", "branch", "continue", "error_type", t)
		return
	}

	h.logger.Debug("Rolling back owned transaction", "branch", "rollback", "transaction", tx.ID())
	if err := tx.Rollback(ctx); err != nil {
		h.logger.Error("Transaction rollback failed", "transaction", tx.ID(), "error", err)
		ex.AddSuppressed(err)
	}
}

// clearAndCommit strips the error from the result and commits the owned transaction
func clearAndCommit(ctx context.Context, h *OnErrorHandler, result *event.Event) (*event.Event, error) {
	result = result.WithoutError()

	tx, ok := h.deps.Transactions.GetCurrentTransaction(ctx)
	if !ok || !h.deps.Transactions.IsOwner(ctx, h.scope()) {
		return result, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return result, err
	}
	h.logger.Debug("Committed owned transaction", "transaction", tx.ID())
	return result, nil
}

// logCritical logs overload faults at info level and every other critical
// fault at error level. Every overload fault is logged; the sampler only
// decides which lines carry the full detail.
func logCritical(ctx context.Context, h *OnErrorHandler, ex *event.MessagingException) {
	t := ex.ErrorType()
	if overload := h.internalType(errortype.Overload); overload != nil && t.IsA(overload) {
		if !h.overloadSampler.Allow() {
			h.overloadSuppressed.Add(1)
			h.logger.Log(ctx, slog.LevelInfo, "Flow rejected under load", "error_type", t)
			return
		}
		h.logger.Log(ctx, slog.LevelInfo, "Flow rejected under load",
			"error_type", t, "event_id", ex.Event().ID(), "error", ex.Cause(),
			"suppressed_detail", h.overloadSuppressed.Swap(0))
		return
	}

	attrs := []any{"error_type", t, "event_id", ex.Event().ID(), "error", ex.Cause()}
	if loc := ex.FailingComponent(); !loc.IsZero() {
		attrs = append(attrs, "failing_component", loc.String())
	}
	if e := ex.Event().Error(); e != nil && e.DetailedDescription != "" {
		attrs = append(attrs, "detail", e.DetailedDescription)
	}
	h.logger.Log(ctx, slog.LevelError, "Critical error", attrs...)
}
