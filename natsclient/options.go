package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mulesoft/mule-sub047/metric"
)

type options struct {
	name          string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration

	username string
	password string
	token    string

	threshold  int
	maxBackoff time.Duration

	logger         *slog.Logger
	registry       *metric.MetricsRegistry
	onHealthChange func(healthy bool)
}

// Option configures a Client
type Option func(*options) error

// WithName sets the connection name shown by the server
func WithName(name string) Option {
	return func(o *options) error {
		o.name = name
		return nil
	}
}

// WithMaxReconnects bounds the reconnects nats.go attempts on its own; -1 is unlimited
func WithMaxReconnects(n int) Option {
	return func(o *options) error {
		o.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the wait between nats.go reconnect attempts
func WithReconnectWait(d time.Duration) Option {
	return func(o *options) error {
		o.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the dial timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		o.timeout = d
		return nil
	}
}

// WithCredentials authenticates with username and password
func WithCredentials(username, password string) Option {
	return func(o *options) error {
		o.username, o.password = username, password
		return nil
	}
}

// WithToken authenticates with a token
func WithToken(token string) Option {
	return func(o *options) error {
		o.token = token
		return nil
	}
}

// WithCircuitBreaker sets the consecutive failures that open the breaker and
// the longest time it stays open
func WithCircuitBreaker(threshold int, maxBackoff time.Duration) Option {
	return func(o *options) error {
		if threshold < 1 {
			return fmt.Errorf("circuit breaker threshold must be at least 1, got %d", threshold)
		}
		if maxBackoff < initialBackoff {
			return fmt.Errorf("circuit breaker max backoff must be at least %v, got %v", initialBackoff, maxBackoff)
		}
		o.threshold, o.maxBackoff = threshold, maxBackoff
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithMetrics exports the connection status and reconnect count
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) error {
		o.registry = registry
		return nil
	}
}

// OnHealthChange calls fn each time the client becomes connected or stops being so
func OnHealthChange(fn func(healthy bool)) Option {
	return func(o *options) error {
		o.onHealthChange = fn
		return nil
	}
}
