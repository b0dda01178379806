package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mulesoft/mule-sub047/errors"
)

// ConnectionStatus is the state of the connection as seen by the client
type ConnectionStatus int

// Connection states, exported as the connection_status gauge value
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{"disconnected", "connecting", "connected", "reconnecting", "circuit_open"}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ErrNotConnected and ErrCircuitOpen wrap errors.ErrNoConnection so that
// faults caused by a missing connection are typed CONNECTIVITY.
var (
	ErrNotConnected = fmt.Errorf("nats: %w", errors.ErrNoConnection)
	ErrCircuitOpen  = fmt.Errorf("nats circuit breaker is open: %w", errors.ErrNoConnection)
	ErrClosed       = stderrors.New("nats client closed")
)

const drainTimeout = 30 * time.Second

// Client owns one NATS connection. Connection attempts go through a circuit
// breaker; once connected, nats.go reconnects on its own and Reconnect
// replaces a connection nats.go gave up on.
type Client struct {
	url     string
	opts    options
	logger  *slog.Logger
	metrics *clientMetrics
	breaker *breaker

	mu     sync.RWMutex
	conn   *nats.Conn
	status ConnectionStatus
	closed bool
}

// NewClient creates a disconnected client for url
func NewClient(url string, opts ...Option) (*Client, error) {
	o := options{
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		threshold:     defaultThreshold,
		maxBackoff:    defaultMaxBackoff,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c := &Client{
		url:     url,
		opts:    o,
		logger:  o.logger.With("component", "natsclient", "url", url),
		breaker: newBreaker(o.threshold, o.maxBackoff),
	}
	if o.registry != nil {
		m, err := newClientMetrics(o.registry)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "register metrics")
		}
		c.metrics = m
	}
	return c, nil
}

// Status returns the connection status; an open breaker reports StatusCircuitOpen
func (c *Client) Status() ConnectionStatus {
	if open, _ := c.breaker.state(); open {
		return StatusCircuitOpen
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsHealthy reports whether messages can be published
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Connect dials the server. It fails fast with ErrCircuitOpen while the
// breaker is open.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.breaker.allow() {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	conn, err := c.dial(ctx)
	if err != nil {
		c.setStatus(StatusDisconnected)
		if c.breaker.failure() {
			_, backoff := c.breaker.state()
			c.logger.Warn("Circuit breaker opened", "backoff", backoff, "error", err)
			c.setStatus(StatusCircuitOpen)
			return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.breaker.success()
	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS")
	return nil
}

// dial runs nats.Connect, which takes no context, in the background. A
// connection completing after ctx is done is closed.
func (c *Client) dial(ctx context.Context) (*nats.Conn, error) {
	type result struct {
		conn *nats.Conn
		err  error
	}
	c.mu.RLock()
	opts := c.natsOptions()
	c.mu.RUnlock()

	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Client) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.opts.maxReconnects),
		nats.ReconnectWait(c.opts.reconnectWait),
		nats.Timeout(c.opts.timeout),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if c.owns(nc) {
				c.logger.Warn("Disconnected from NATS", "error", err)
				c.setStatus(StatusReconnecting)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if c.owns(nc) {
				c.logger.Info("Reconnected to NATS")
				c.breaker.success()
				c.setStatus(StatusConnected)
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if c.owns(nc) {
				c.setStatus(StatusDisconnected)
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS error", "error", err)
		}),
	}
	if c.opts.username != "" && c.opts.password != "" {
		opts = append(opts, nats.UserInfo(c.opts.username, c.opts.password))
	}
	if c.opts.token != "" {
		opts = append(opts, nats.Token(c.opts.token))
	}
	if c.opts.name != "" {
		opts = append(opts, nats.Name(c.opts.name))
	}
	return opts
}

// Reconnect replaces a dead connection. It does nothing while the client is
// healthy, so retry loops may call it repeatedly.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.IsHealthy() {
		return nil
	}

	c.mu.Lock()
	stale := c.conn
	c.conn = nil
	c.mu.Unlock()
	if stale != nil {
		stale.Close()
	}

	if c.metrics != nil {
		c.metrics.reconnects.Inc()
	}
	return c.Connect(ctx)
}

// Publish sends data on subject. It returns ErrNotConnected when there is no
// live connection.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Close drains the connection within ctx, bounded by 30s, and closes it.
// Later calls return nil.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.opts.username, c.opts.password, c.opts.token = "", "", ""
	c.mu.Unlock()

	var err error
	if conn != nil {
		if err = drain(ctx, conn); err != nil {
			err = errors.Wrap(err, "Client", "Close", "drain connection")
			c.logger.Error("Failed to drain NATS connection", "error", err)
		}
		conn.Close()
	}
	c.setStatus(StatusDisconnected)
	return err
}

func drain(ctx context.Context, conn *nats.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	if err := conn.Drain(); err != nil {
		return err
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !conn.IsClosed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// owns reports whether nc is the current connection; callbacks of a replaced
// connection are ignored.
func (c *Client) owns(nc *nats.Conn) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn == nc
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// setStatus records s and reports a change of health to the callback
func (c *Client) setStatus(s ConnectionStatus) {
	c.mu.Lock()
	was := c.status == StatusConnected
	c.status = s
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.setStatus(s)
	}
	if now := s == StatusConnected; now != was && c.opts.onHealthChange != nil {
		c.opts.onHealthChange(now)
	}
}
