// Package sqltx adapts database transactions opened through sqlx to
// transaction.Transaction.
package sqltx

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/transaction"
)

// Tx is an active *sqlx.Tx usable as a transaction.Transaction.
type Tx struct {
	id string
	tx *sqlx.Tx

	mu     sync.Mutex
	status transaction.Status
}

// Begin opens a transaction on db
func Begin(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "sqltx", "Begin", "begin transaction")
	}
	return &Tx{id: uuid.NewString(), tx: tx}, nil
}

// BeginScoped opens a transaction on db and binds it to the returned context
// as owned by scope.
func BeginScoped(ctx context.Context, db *sqlx.DB, scope string) (context.Context, *Tx, error) {
	tx, err := Begin(ctx, db, nil)
	if err != nil {
		return ctx, nil, err
	}
	return transaction.Begin(ctx, tx, scope), tx, nil
}

// ID returns the transaction id
func (t *Tx) ID() string { return t.id }

// Tx returns the underlying transaction for queries
func (t *Tx) Tx() *sqlx.Tx { return t.tx }

// Status returns the transaction status
func (t *Tx) Status() transaction.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Commit commits the transaction
func (t *Tx) Commit(_ context.Context) error {
	return t.end("Commit", transaction.StatusCommitted, t.tx.Commit)
}

// Rollback rolls the transaction back
func (t *Tx) Rollback(_ context.Context) error {
	return t.end("Rollback", transaction.StatusRolledBack, t.tx.Rollback)
}

func (t *Tx) end(method string, final transaction.Status, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != transaction.StatusActive {
		return errors.WrapInvalid(fmt.Errorf("%w: %s is %s", errors.ErrTransactionNotActive, t.id, t.status),
			"sqltx", method, "finish transaction")
	}

	// sql.ErrTxDone means the driver already ended the transaction
	if err := fn(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "sqltx", method, "finish transaction")
	}
	t.status = final
	return nil
}
