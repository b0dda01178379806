package transaction

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/errors"
)

func TestBinding(t *testing.T) {
	ctx := context.Background()

	_, ok := Current(ctx)
	assert.False(t, ok)
	assert.False(t, OwnedBy(ctx, "orders"))

	tx := NewFunc(nil, nil)
	ctx = Begin(ctx, tx, "orders")

	current, ok := Current(ctx)
	require.True(t, ok)
	assert.Same(t, tx, current)
	assert.True(t, OwnedBy(ctx, "orders"))
	assert.False(t, OwnedBy(ctx, "billing"))
}

func TestContextCoordinator(t *testing.T) {
	var coordinator Coordinator = ContextCoordinator{}
	tx := NewFunc(nil, nil)
	ctx := Begin(context.Background(), tx, "orders")

	current, ok := coordinator.GetCurrentTransaction(ctx)
	require.True(t, ok)
	assert.Equal(t, tx.ID(), current.ID())
	assert.True(t, coordinator.IsOwner(ctx, "orders"))

	require.NoError(t, tx.Commit(ctx))
	_, ok = coordinator.GetCurrentTransaction(ctx)
	assert.False(t, ok, "finished transactions are not current")
}

func TestFunc_CommitOnce(t *testing.T) {
	commits := 0
	tx := NewFunc(func(context.Context) error { commits++; return nil }, nil)

	assert.Equal(t, StatusActive, tx.Status())
	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, StatusCommitted, tx.Status())

	err := tx.Rollback(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransactionNotActive))
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, 1, commits)
	assert.Equal(t, StatusCommitted, tx.Status())
}

func TestFunc_FailedRollbackStaysActive(t *testing.T) {
	boom := stderrors.New("disk gone")
	tx := NewFunc(nil, func(context.Context) error { return boom })

	err := tx.Rollback(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, boom))
	assert.Equal(t, StatusActive, tx.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "active", StatusActive.String())
	assert.Equal(t, "committed", StatusCommitted.String())
	assert.Equal(t, "rolled_back", StatusRolledBack.String())
	assert.Equal(t, "unknown", Status(42).String())
}
