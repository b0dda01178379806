package transaction

import (
	"context"
	"sync"
)

// Status is the state of a transaction
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Transaction is the narrow view the error handlers have of a resource
// transaction. Commit and Rollback fail once the transaction is finished.
type Transaction interface {
	ID() string
	Status() Status
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Coordinator hands out the transaction bound to a context.
type Coordinator interface {
	GetCurrentTransaction(ctx context.Context) (Transaction, bool)
	// IsOwner reports whether the current transaction was begun by scope.
	IsOwner(ctx context.Context, scope string) bool
}

type bindingKey struct{}

// Binding is a transaction together with the scope that began it.
type Binding struct {
	Tx    Transaction
	Owner string
}

// Begin binds tx to ctx as owned by scope. An already bound transaction is
// replaced for the returned context only.
func Begin(ctx context.Context, tx Transaction, scope string) context.Context {
	return context.WithValue(ctx, bindingKey{}, &Binding{Tx: tx, Owner: scope})
}

// Current returns the transaction bound to ctx.
func Current(ctx context.Context) (Transaction, bool) {
	b, ok := ctx.Value(bindingKey{}).(*Binding)
	if !ok || b.Tx == nil {
		return nil, false
	}
	return b.Tx, true
}

// OwnedBy reports whether the transaction bound to ctx was begun by scope.
func OwnedBy(ctx context.Context, scope string) bool {
	b, ok := ctx.Value(bindingKey{}).(*Binding)
	return ok && b.Tx != nil && b.Owner == scope
}

// ContextCoordinator resolves transactions from the context only.
type ContextCoordinator struct{}

// GetCurrentTransaction returns the transaction bound to ctx if it is still active.
func (ContextCoordinator) GetCurrentTransaction(ctx context.Context) (Transaction, bool) {
	tx, ok := Current(ctx)
	if !ok || tx.Status() != StatusActive {
		return nil, false
	}
	return tx, true
}

// IsOwner implements Coordinator.
func (ContextCoordinator) IsOwner(ctx context.Context, scope string) bool {
	return OwnedBy(ctx, scope)
}

// state tracks the status of a transaction implementation and guards the
// single transition out of StatusActive.
type state struct {
	mu     sync.Mutex
	status Status
}

func (s *state) get() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// finish runs fn while active and moves to final when fn succeeds
func (s *state) finish(final Status, fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return false, nil
	}
	if err := fn(); err != nil {
		return true, err
	}
	s.status = final
	return true, nil
}
