package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/metric"
)

// FanOut delivers every notification to all its sinks in order.
type FanOut struct {
	sinks   []Sink
	metrics *metric.Metrics
	logger  *slog.Logger
}

// Option configures a FanOut
type Option func(*FanOut)

// WithMetrics records delivery outcomes on the core metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(d *FanOut) {
		d.metrics = m
	}
}

// WithLogger sets the logger used to report delivery failures
func WithLogger(logger *slog.Logger) Option {
	return func(d *FanOut) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewFanOut creates a dispatcher over sinks
func NewFanOut(sinks []Sink, opts ...Option) *FanOut {
	d := &FanOut{sinks: sinks, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "notification")
	return d
}

// FireNotification delivers n to each sink. A failing or panicking sink is
// logged and skipped.
func (d *FanOut) FireNotification(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		err := deliver(ctx, sink, n)
		if d.metrics != nil {
			d.metrics.RecordNotification(string(n.Action), err == nil)
		}
		if err != nil {
			d.logger.Warn("Notification delivery failed",
				"sink", sink.Name(), "action", n.Action, "event_id", n.EventID, "error", err)
		}
	}
}

func deliver(ctx context.Context, sink Sink, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(&errors.PanicError{Value: r}, "FanOut", "FireNotification",
				fmt.Sprintf("deliver to %s", sink.Name()))
		}
	}()
	return sink.Deliver(ctx, n)
}
