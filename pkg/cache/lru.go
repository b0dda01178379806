package cache

import (
	"container/list"
	"sync"

	"github.com/mulesoft/mule-sub047/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

type evicted[V any] struct {
	key   string
	value V
}

// lruCache evicts the least recently used entry once maxSize is exceeded.
type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

func newLRUCache[V any](maxSize int, opts *cacheOptions[V]) (*lruCache[V], error) {
	var metrics *cacheMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newLRUCache", "metrics registration")
		}
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.stats.miss()
		if c.metrics != nil {
			c.metrics.requests.WithLabelValues("miss").Inc()
		}
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.hit()
	if c.metrics != nil {
		c.metrics.requests.WithLabelValues("hit").Inc()
	}
	return element.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var out []evicted[V]
	created := false

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
	} else {
		c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
		created = true
		for len(c.items) > c.maxSize {
			out = append(out, c.removeOldestLocked())
			c.stats.eviction()
			if c.metrics != nil {
				c.metrics.evictions.Inc()
			}
		}
	}
	c.stats.set()
	c.sizeChangedLocked()
	c.mu.Unlock()

	c.notify(out)
	return created, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}
	entry := c.removeLocked(element)
	c.stats.delete()
	c.sizeChangedLocked()
	c.mu.Unlock()

	c.notify([]evicted[V]{entry})
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	var out []evicted[V]
	if c.evictFn != nil {
		for element := c.order.Back(); element != nil; element = element.Prev() {
			entry := element.Value.(*lruEntry[V])
			out = append(out, evicted[V]{key: entry.key, value: entry.value})
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.sizeChangedLocked()
	c.mu.Unlock()

	c.notify(out)
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}

func (c *lruCache[V]) removeOldestLocked() evicted[V] {
	return c.removeLocked(c.order.Back())
}

func (c *lruCache[V]) removeLocked(element *list.Element) evicted[V] {
	entry := element.Value.(*lruEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	return evicted[V]{key: entry.key, value: entry.value}
}

func (c *lruCache[V]) sizeChangedLocked() {
	c.stats.updateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.size.Set(float64(len(c.items)))
	}
}

// notify runs the eviction callback outside the lock
func (c *lruCache[V]) notify(out []evicted[V]) {
	if c.evictFn == nil {
		return
	}
	for _, e := range out {
		c.evictFn(e.key, e.value)
	}
}
