package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mulesoft/mule-sub047/errors"
)

// LogSink writes notifications to a structured logger
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink logging at level
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notification"), level: level}
}

// Name implements Sink
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink
func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.logger.Log(ctx, s.level, "Error handling notification",
		"action", n.Action,
		"event_id", n.EventID,
		"correlation_id", n.CorrelationID,
		"error_type", n.ErrorType,
		"handler", n.Handler,
		"component", n.Component,
		"handled", n.Handled,
	)
	return nil
}

// Publisher publishes raw messages. *natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// DefaultSubjectPrefix is the subject prefix used by NATSSink
const DefaultSubjectPrefix = "flowfault.notifications"

// NATSSink publishes notifications as JSON on <prefix>.<action>
type NATSSink struct {
	publisher Publisher
	prefix    string
	onFailure func(ctx context.Context, n Notification, err error)
}

// NATSSinkOption configures a NATSSink
type NATSSinkOption func(*NATSSink)

// OnPublishFailure calls fn with every failed publish before Deliver returns
// the error, e.g. to hand the connection fault to the system strategy.
func OnPublishFailure(fn func(ctx context.Context, n Notification, err error)) NATSSinkOption {
	return func(s *NATSSink) {
		s.onFailure = fn
	}
}

// NewNATSSink creates a NATS sink; an empty prefix selects DefaultSubjectPrefix
func NewNATSSink(publisher Publisher, prefix string, opts ...NATSSinkOption) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	s := &NATSSink{publisher: publisher, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Sink
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject a notification with action is published on
func (s *NATSSink) Subject(action Action) string {
	return s.prefix + "." + string(action)
}

// Deliver implements Sink
func (s *NATSSink) Deliver(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "NATSSink", "Deliver", "marshal notification")
	}
	if err := s.publisher.Publish(ctx, s.Subject(n.Action), data); err != nil {
		err = errors.WrapTransient(err, "NATSSink", "Deliver", "publish notification")
		if s.onFailure != nil {
			s.onFailure(ctx, n, err)
		}
		return err
	}
	return nil
}
