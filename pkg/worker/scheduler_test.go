package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSchedulerFactory_RunsTasks(t *testing.T) {
	factory := &PoolSchedulerFactory{Workers: 2, QueueSize: 8}
	scheduler, err := factory.NewScheduler(context.Background(), "retry.test")
	require.NoError(t, err)

	var ran int64
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, scheduler.Submit(func(_ context.Context) error {
			atomic.AddInt64(&ran, 1)
			done <- struct{}{}
			return nil
		}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&ran))

	require.NoError(t, scheduler.Stop(0))
	assert.ErrorIs(t, scheduler.Submit(func(context.Context) error { return nil }), ErrPoolStopped)
}

func TestPoolScheduler_RejectsNilTask(t *testing.T) {
	factory := &PoolSchedulerFactory{}
	scheduler, err := factory.NewScheduler(context.Background(), "nil")
	require.NoError(t, err)
	defer scheduler.Stop(0)

	assert.True(t, errors.Is(scheduler.Submit(nil), ErrNilProcessor))
}

func TestPoolScheduler_Stats(t *testing.T) {
	factory := &PoolSchedulerFactory{Workers: 1}
	scheduler, err := factory.NewScheduler(context.Background(), "stats")
	require.NoError(t, err)

	require.NoError(t, scheduler.Submit(func(context.Context) error { return errors.New("failed") }))
	require.NoError(t, scheduler.Stop(time.Second))

	stats := scheduler.(*PoolScheduler).Stats()
	assert.Equal(t, int64(1), stats.Submitted)
	assert.Equal(t, int64(1), stats.Failed)
}
