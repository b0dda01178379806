package cache

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/metric"
)

func TestNewLRU_InvalidSize(t *testing.T) {
	_, err := NewLRU[int](0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLRU_GetSet(t *testing.T) {
	c, err := NewLRU[string](2)
	require.NoError(t, err)

	created, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("a", "one")
	require.NoError(t, err)
	assert.False(t, created)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Misses())
	assert.InDelta(t, 0.5, c.Stats().HitRatio(), 0.0001)

	_, err = c.Set("", "x")
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evictedKeys []string
	c, err := NewLRU[int](2, WithEvictionCallback(func(key string, _ int) {
		evictedKeys = append(evictedKeys, key)
	}))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Get("a") // b is now the oldest
	_, _ = c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evictedKeys)
	assert.Equal(t, int64(1), c.Stats().Evictions())
	assert.Equal(t, 2, c.Size())
}

func TestLRU_DeleteAndClear(t *testing.T) {
	var evictedKeys []string
	c, err := NewLRU[int](4, WithEvictionCallback(func(key string, _ int) {
		evictedKeys = append(evictedKeys, key)
	}))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Set("c", 3)

	deleted, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = c.Delete("a")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, int64(0), c.Stats().CurrentSize())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, evictedKeys)
}

func TestLRU_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewLRU[int](1, WithMetrics[int](registry, "expression"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")
	_, _ = c.Set("b", 2)

	lru := c.(*lruCache[int])
	assert.Equal(t, float64(1), testutil.ToFloat64(lru.metrics.requests.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(lru.metrics.requests.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(lru.metrics.evictions))
	assert.Equal(t, float64(1), testutil.ToFloat64(lru.metrics.size))

	// Same prefix twice is a registration conflict
	_, err = NewLRU[int](1, WithMetrics[int](registry, "expression"))
	assert.Error(t, err)
}

func TestLRU_Concurrent(t *testing.T) {
	c, err := NewLRU[int](16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (n+j)%26))
				_, _ = c.Set(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 16)
}
