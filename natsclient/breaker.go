package natsclient

import (
	"sync"
	"time"
)

const (
	defaultThreshold  = 5
	initialBackoff    = time.Second
	defaultMaxBackoff = time.Minute
)

// breaker counts consecutive connection failures. Once threshold failures
// are reached it opens for the current backoff; every further full round of
// failures doubles the backoff up to max.
type breaker struct {
	mu        sync.Mutex
	threshold int
	max       time.Duration

	round    int
	backoff  time.Duration
	openedAt time.Time
	open     bool
	now      func() time.Time
}

func newBreaker(threshold int, max time.Duration) *breaker {
	return &breaker{threshold: threshold, max: max, backoff: initialBackoff, now: time.Now}
}

// allow reports whether an attempt may go ahead. An open breaker half-opens
// once its backoff has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.backoff {
		return false
	}
	b.open = false
	return true
}

// failure records a failed attempt and reports whether the breaker is open
func (b *breaker) failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.round++
	if b.round < b.threshold {
		return b.open
	}
	b.round = 0
	if b.open || !b.openedAt.IsZero() {
		b.backoff = min(b.backoff*2, b.max)
	}
	b.open = true
	b.openedAt = b.now()
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.round = 0
	b.open = false
	b.openedAt = time.Time{}
	b.backoff = initialBackoff
}

func (b *breaker) state() (open bool, backoff time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, b.backoff
}
