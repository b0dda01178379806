package event

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errortype"
)

// MessagingException carries a fault together with the event that was being
// processed when it happened. Handlers flip its flags while resolving it;
// Handled is sticky once set.
type MessagingException struct {
	mu sync.RWMutex

	cause   error
	event   *Event
	failing component.Location

	handled        bool
	inErrorHandler bool
	causeRollback  bool
	suppressed     []error
}

// ExceptionOption configures a MessagingException
type ExceptionOption func(*MessagingException)

// WithFailingComponent records where the fault was raised
func WithFailingComponent(loc component.Location) ExceptionOption {
	return func(ex *MessagingException) {
		ex.failing = loc
	}
}

// WithInErrorHandler marks a fault raised while another fault was being handled
func WithInErrorHandler() ExceptionOption {
	return func(ex *MessagingException) {
		ex.inErrorHandler = true
	}
}

// NewMessagingException wraps cause
func NewMessagingException(cause error, evt *Event, opts ...ExceptionOption) *MessagingException {
	ex := &MessagingException{cause: cause, event: evt}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// AsMessagingException returns the MessagingException already present in err's
// chain or wraps err in a new one. evt fills in a missing event.
func AsMessagingException(err error, evt *Event, opts ...ExceptionOption) *MessagingException {
	var existing *MessagingException
	if stderrors.As(err, &existing) {
		if existing.Event() == nil && evt != nil {
			existing.SetEvent(evt)
		}
		return existing
	}
	return NewMessagingException(err, evt, opts...)
}

func (ex *MessagingException) Error() string {
	msg := "messaging exception"
	if ex.cause != nil {
		msg = ex.cause.Error()
	}
	if !ex.failing.IsZero() {
		return fmt.Sprintf("%s: %s", ex.failing, msg)
	}
	return msg
}

// Unwrap returns the cause
func (ex *MessagingException) Unwrap() error {
	return ex.cause
}

// Cause returns the original fault
func (ex *MessagingException) Cause() error {
	return ex.cause
}

// ErrorType returns the type of the error carried by the event, nil when the
// event has not been typed yet.
func (ex *MessagingException) ErrorType() *errortype.ErrorType {
	evt := ex.Event()
	if evt == nil || evt.Error() == nil {
		return nil
	}
	return evt.Error().Type
}

// Event returns the event snapshot of the failure
func (ex *MessagingException) Event() *Event {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.event
}

// SetEvent replaces the event snapshot, e.g. after attaching an error context
func (ex *MessagingException) SetEvent(evt *Event) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.event = evt
}

// FailingComponent returns where the fault was raised, zero if unknown
func (ex *MessagingException) FailingComponent() component.Location {
	return ex.failing
}

// Handled reports whether a handler resolved the fault
func (ex *MessagingException) Handled() bool {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.handled
}

// MarkHandled marks the fault as resolved. There is no way back.
func (ex *MessagingException) MarkHandled() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.handled = true
}

// InErrorHandler reports whether the fault was raised inside an error handler
func (ex *MessagingException) InErrorHandler() bool {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.inErrorHandler
}

// SetInErrorHandler sets the in-error-handler flag
func (ex *MessagingException) SetInErrorHandler(v bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.inErrorHandler = v
}

// CauseRollback reports whether the fault must roll back the transaction
func (ex *MessagingException) CauseRollback() bool {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.causeRollback
}

// SetCauseRollback sets the rollback flag
func (ex *MessagingException) SetCauseRollback(v bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.causeRollback = v
}

// AddSuppressed records a secondary fault, such as a failed rollback, without
// replacing the cause.
func (ex *MessagingException) AddSuppressed(err error) {
	if err == nil {
		return
	}
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.suppressed = append(ex.suppressed, err)
}

// Suppressed returns the secondary faults in the order they were added
func (ex *MessagingException) Suppressed() []error {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return append([]error(nil), ex.suppressed...)
}
