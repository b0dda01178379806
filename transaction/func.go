package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mulesoft/mule-sub047/errors"
)

// Func is a Transaction backed by commit and rollback callbacks. Either may
// be nil.
type Func struct {
	id       string
	state    state
	commit   func(ctx context.Context) error
	rollback func(ctx context.Context) error
}

// NewFunc creates an active callback-backed transaction
func NewFunc(commit, rollback func(ctx context.Context) error) *Func {
	return &Func{id: uuid.NewString(), commit: commit, rollback: rollback}
}

// ID returns the transaction id
func (t *Func) ID() string { return t.id }

// Status returns the current status
func (t *Func) Status() Status { return t.state.get() }

// Commit runs the commit callback
func (t *Func) Commit(ctx context.Context) error {
	return t.end(ctx, StatusCommitted, t.commit, "Commit")
}

// Rollback runs the rollback callback
func (t *Func) Rollback(ctx context.Context) error {
	return t.end(ctx, StatusRolledBack, t.rollback, "Rollback")
}

func (t *Func) end(ctx context.Context, final Status, fn func(context.Context) error, method string) error {
	ran, err := t.state.finish(final, func() error {
		if fn == nil {
			return nil
		}
		return fn(ctx)
	})
	if !ran {
		return errors.WrapInvalid(fmt.Errorf("%w: %s is %s", errors.ErrTransactionNotActive, t.id, t.state.get()),
			"Transaction", method, "finish transaction")
	}
	if err != nil {
		return errors.Wrap(err, "Transaction", method, "finish transaction")
	}
	return nil
}
