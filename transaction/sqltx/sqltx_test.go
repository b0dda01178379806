package sqltx

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/transaction"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database shared
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM orders`))
	return n
}

func TestTx_Commit(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	tx, err := Begin(ctx, db, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID())

	_, err = tx.Tx().ExecContext(ctx, `INSERT INTO orders (status) VALUES (?)`, "new")
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, transaction.StatusCommitted, tx.Status())
	assert.Equal(t, 1, count(t, db))

	err = tx.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransactionNotActive))
}

func TestTx_Rollback(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	tx, err := Begin(ctx, db, nil)
	require.NoError(t, err)

	_, err = tx.Tx().ExecContext(ctx, `INSERT INTO orders (status) VALUES (?)`, "new")
	require.NoError(t, err)

	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, transaction.StatusRolledBack, tx.Status())
	assert.Equal(t, 0, count(t, db))
}

func TestBeginScoped(t *testing.T) {
	db := openDB(t)

	ctx, tx, err := BeginScoped(context.Background(), db, "orders")
	require.NoError(t, err)

	current, ok := transaction.ContextCoordinator{}.GetCurrentTransaction(ctx)
	require.True(t, ok)
	assert.Equal(t, tx.ID(), current.ID())
	assert.True(t, transaction.OwnedBy(ctx, "orders"))

	require.NoError(t, current.Rollback(ctx))
}
