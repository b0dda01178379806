package event

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/mulesoft/mule-sub047/component"
)

// Context identifies one execution scope of an event. Child scopes (the
// sub-chain of an error handler, for instance) share the correlation id and
// point back at their parent.
type Context struct {
	CorrelationID string
	ID            string
	ParentID      string
	Depth         int
	Location      component.Location

	parent *Context
}

// Parent returns the enclosing scope, nil at the root
func (c *Context) Parent() *Context {
	return c.parent
}

// Event is the immutable message travelling through a flow. Every With* method
// returns a new Event; the receiver is never modified.
//
// Construction using Functional Options:
//
//	evt := event.New(payload)
//	evt := event.New(payload, event.WithCorrelationID("order-42"), event.WithVariables(vars))
type Event struct {
	ctx          *Context
	payload      any
	variables    map[string]any
	err          *Error
	errorContext *ErrorContextManager
	createdAt    time.Time
}

// Option is a functional option for configuring Event construction
type Option func(*Event)

// WithCorrelationID sets the correlation id instead of generating one
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		e.ctx.CorrelationID = id
	}
}

// WithVariables seeds the event variables. The map is copied.
func WithVariables(vars map[string]any) Option {
	return func(e *Event) {
		e.variables = maps.Clone(vars)
	}
}

// WithLocation sets the location of the root execution scope
func WithLocation(loc component.Location) Option {
	return func(e *Event) {
		e.ctx.Location = loc
	}
}

// WithTime sets the creation timestamp instead of using time.Now()
func WithTime(createdAt time.Time) Option {
	return func(e *Event) {
		e.createdAt = createdAt
	}
}

// New creates a root event carrying payload
func New(payload any, opts ...Option) *Event {
	id := uuid.New().String()
	e := &Event{
		ctx:       &Context{CorrelationID: id, ID: id},
		payload:   payload,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Event) copy() *Event {
	c := *e
	return &c
}

// ID returns the id of the current execution scope
func (e *Event) ID() string { return e.ctx.ID }

// CorrelationID returns the id shared by every scope of this event
func (e *Event) CorrelationID() string { return e.ctx.CorrelationID }

// Context returns a copy of the current execution scope
func (e *Event) Context() Context { return *e.ctx }

// Payload returns the payload
func (e *Event) Payload() any { return e.payload }

// CreatedAt returns the creation time of the root event
func (e *Event) CreatedAt() time.Time { return e.createdAt }

// Variable returns one variable
func (e *Event) Variable(name string) (any, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// Variables returns a copy of the variables
func (e *Event) Variables() map[string]any {
	return maps.Clone(e.variables)
}

// Error returns the error carried by the event, nil when processing is clean
func (e *Event) Error() *Error { return e.err }

// ErrorContext returns the attached error-handling context manager, if any
func (e *Event) ErrorContext() *ErrorContextManager { return e.errorContext }

// WithPayload returns a copy with a new payload
func (e *Event) WithPayload(payload any) *Event {
	c := e.copy()
	c.payload = payload
	return c
}

// WithVariable returns a copy with one variable set
func (e *Event) WithVariable(name string, value any) *Event {
	c := e.copy()
	c.variables = maps.Clone(e.variables)
	if c.variables == nil {
		c.variables = make(map[string]any, 1)
	}
	c.variables[name] = value
	return c
}

// WithoutVariable returns a copy with one variable removed
func (e *Event) WithoutVariable(name string) *Event {
	if _, ok := e.variables[name]; !ok {
		return e
	}
	c := e.copy()
	c.variables = maps.Clone(e.variables)
	delete(c.variables, name)
	return c
}

// WithError returns a copy carrying err
func (e *Event) WithError(err *Error) *Event {
	c := e.copy()
	c.err = err
	return c
}

// WithoutError returns a copy with the error cleared
func (e *Event) WithoutError() *Event {
	if e.err == nil {
		return e
	}
	return e.WithError(nil)
}

// WithErrorContext returns a copy with the context manager attached
func (e *Event) WithErrorContext(m *ErrorContextManager) *Event {
	c := e.copy()
	c.errorContext = m
	return c
}

// ChildContext returns a copy running in a new scope nested under the current one
func (e *Event) ChildContext(loc component.Location) *Event {
	c := e.copy()
	c.ctx = &Context{
		CorrelationID: e.ctx.CorrelationID,
		ID:            uuid.New().String(),
		ParentID:      e.ctx.ID,
		Depth:         e.ctx.Depth + 1,
		Location:      loc,
		parent:        e.ctx,
	}
	return c
}

// ParentContext returns a copy back in the enclosing scope. At the root it
// returns the receiver.
func (e *Event) ParentContext() *Event {
	if e.ctx.parent == nil {
		return e
	}
	c := e.copy()
	c.ctx = e.ctx.parent
	return c
}

type currentKey struct{}

// WithCurrent stores evt as the event being processed by ctx
func WithCurrent(ctx context.Context, evt *Event) context.Context {
	return context.WithValue(ctx, currentKey{}, evt)
}

// Current returns the event being processed by ctx, if any
func Current(ctx context.Context) (*Event, bool) {
	evt, ok := ctx.Value(currentKey{}).(*Event)
	return evt, ok && evt != nil
}
