package notification

import (
	"context"
	"time"

	"github.com/mulesoft/mule-sub047/event"
)

// Action identifies what a notification reports
type Action string

// Notification actions
const (
	ActionHandlingStart   Action = "error_handling_start"
	ActionHandlingEnd     Action = "error_handling_end"
	ActionSecurity        Action = "security_failure"
	ActionSystemException Action = "system_exception"
)

// Notification is an observability record of error handling
type Notification struct {
	Action        Action    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
	EventID       string    `json:"event_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ErrorType     string    `json:"error_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	Component     string    `json:"component,omitempty"`
	Handler       string    `json:"handler,omitempty"`
	Handled       bool      `json:"handled"`
}

// New builds a notification for ex. The event is taken from ex when evt is nil.
func New(action Action, handler string, evt *event.Event, ex *event.MessagingException) Notification {
	n := Notification{Action: action, Timestamp: time.Now().UTC(), Handler: handler}

	if ex != nil {
		if evt == nil {
			evt = ex.Event()
		}
		n.Handled = ex.Handled()
		n.Description = ex.Error()
		if loc := ex.FailingComponent(); !loc.IsZero() {
			n.Component = loc.String()
		}
	}

	if evt != nil {
		n.EventID = evt.ID()
		n.CorrelationID = evt.CorrelationID()
		if e := evt.Error(); e != nil {
			n.ErrorType = e.Type.String()
			if e.Description != "" {
				n.Description = e.Description
			}
			if n.Component == "" && !e.FailingComponent.IsZero() {
				n.Component = e.FailingComponent.String()
			}
		}
	}
	return n
}

// Dispatcher fires notifications. It never fails: delivery problems are
// logged by the dispatcher and do not reach the caller.
type Dispatcher interface {
	FireNotification(ctx context.Context, n Notification)
}

// Sink delivers a notification to one destination
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, n Notification) error

// Name implements Sink
func (f SinkFunc) Name() string { return "func" }

// Deliver implements Sink
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop discards notifications
type Nop struct{}

// FireNotification implements Dispatcher
func (Nop) FireNotification(context.Context, Notification) {}
