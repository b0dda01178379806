package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/event"
)

// Acceptor is one entry of a Chain
type Acceptor interface {
	event.Keyed
	// Accept reports whether the acceptor claims the failed event
	Accept(evt *event.Event) bool
	// AcceptsAll reports whether Accept is unconditionally true
	AcceptsAll() bool
	// Route handles ex, reporting to exactly one callback
	Route(ctx context.Context, ex *event.MessagingException, onSuccess func(*event.Event), onError func(*event.MessagingException))
}

// Chain dispatches a fault to the first acceptor that claims it. After
// Initialise the first acceptor is the critical handler and the last one
// accepts everything.
type Chain struct {
	location  component.Location
	acceptors []Acceptor
	all       []Acceptor
	deps      Dependencies

	status component.Status
	logger *slog.Logger
}

var _ component.Lifecycle = (*Chain)(nil)

// NewChain creates an uninitialised chain for the flow element at location
func NewChain(location component.Location, acceptors []Acceptor, deps Dependencies) *Chain {
	deps = deps.WithDefaults()
	return &Chain{
		location:  location,
		acceptors: append([]Acceptor(nil), acceptors...),
		deps:      deps,
		logger:    component.Logger(deps.Logger, "chain").With("location", location.String()),
	}
}

// Location returns where the chain is bound
func (c *Chain) Location() component.Location { return c.location }

// State returns the lifecycle state of the chain
func (c *Chain) State() component.State { return c.status.State() }

// Acceptors returns the effective acceptor list, including the synthetic
// critical and default handlers once initialised.
func (c *Chain) Acceptors() []Acceptor {
	if c.status.State() != component.StateInitialised {
		return append([]Acceptor(nil), c.acceptors...)
	}
	return append([]Acceptor(nil), c.all...)
}

// Initialise validates the acceptor order and completes the chain
func (c *Chain) Initialise() error {
	return c.status.Initialise("Chain", func() error {
		for i, a := range c.acceptors {
			if a == nil {
				return errors.WrapInvalid(fmt.Errorf("%w: acceptor %d is nil", errors.ErrInvalidConfig, i),
					"Chain", "Initialise", "validate acceptors")
			}
		}
		for i, a := range c.acceptors[:max(len(c.acceptors)-1, 0)] {
			if a.AcceptsAll() {
				return errors.WrapInvalid(
					fmt.Errorf("%w: only the last handler of %s may accept every error, handler %d does",
						errors.ErrInvalidConfig, c.location, i),
					"Chain", "Initialise", "validate order")
			}
		}

		all := make([]Acceptor, 0, len(c.acceptors)+2)
		all = append(all, NewOnErrorHandler(Config{Kind: KindCritical}, c.deps))
		all = append(all, c.acceptors...)
		if len(c.acceptors) == 0 || !c.acceptors[len(c.acceptors)-1].AcceptsAll() {
			all = append(all, NewOnErrorHandler(Config{Kind: KindPropagate, Name: "default"}, c.deps))
		}

		for _, a := range all {
			if h, ok := a.(*OnErrorHandler); ok {
				h.bind(c.location)
				if h.State() == component.StateInitialised {
					continue
				}
			}
			if lc, ok := a.(component.Lifecycle); ok {
				if err := lc.Initialise(); err != nil && !stderrors.Is(err, errors.ErrAlreadyInitialised) {
					return err
				}
			}
		}

		for i, a := range c.acceptors[:max(len(c.acceptors)-1, 0)] {
			if h, ok := a.(*OnErrorHandler); ok && h.effectivelyAcceptsAny() {
				c.logger.Warn("Error handler accepts any error, later handlers are unreachable",
					"handler", h.Name(), "index", i)
			}
		}

		c.all = all
		return nil
	})
}

// Dispose disposes every acceptor of the chain
func (c *Chain) Dispose() error {
	return c.status.Dispose(func() error {
		var errs []error
		for _, a := range c.all {
			if lc, ok := a.(component.Lifecycle); ok {
				if err := lc.Dispose(); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return stderrors.Join(errs...)
	})
}

// DuplicateFor returns an uninitialised chain bound to location with fresh
// copies of the configured handlers.
func (c *Chain) DuplicateFor(location component.Location) *Chain {
	acceptors := make([]Acceptor, len(c.acceptors))
	for i, a := range c.acceptors {
		if h, ok := a.(*OnErrorHandler); ok {
			acceptors[i] = h.DuplicateFor(location)
			continue
		}
		acceptors[i] = a
	}
	return NewChain(location, acceptors, c.deps)
}

// ApplyOption configures how Apply resolves a fault
type ApplyOption func(*applyOptions)

type applyOptions struct {
	component *component.Identifier
}

// FromComponent names the kind of the failing component, e.g. HTTP:request,
// so that its locator overrides type the fault.
func FromComponent(id component.Identifier) ApplyOption {
	return func(o *applyOptions) {
		o.component = &id
	}
}

// HandleException resolves err raised while processing evt and waits for the
// outcome. A handled fault returns the resulting event and a nil error; a
// propagated one returns the exception, whose Event carries the failure.
func (c *Chain) HandleException(ctx context.Context, err error, evt *event.Event, opts ...ApplyOption) (*event.Event, error) {
	outcome, waitErr := c.Apply(ctx, err, evt, opts...).Await(ctx)
	if waitErr != nil {
		return evt, waitErr
	}
	if outcome.Exception != nil {
		return outcome.Exception.Event(), outcome.Exception
	}
	return outcome.Event, nil
}

// Apply starts resolving err and returns immediately. The future completes
// when the selected handler reports, which may happen on another goroutine.
func (c *Chain) Apply(ctx context.Context, err error, evt *event.Event, opts ...ApplyOption) *Future {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	f := newFuture()
	if evt == nil {
		evt = event.New(nil)
	}
	var ex *event.MessagingException
	if o.component != nil {
		ex = c.deps.Resolver.ResolveComponent(*o.component, err, evt, evt.Context().Location)
	} else {
		ex = c.deps.Resolver.Resolve(err, evt, evt.Context().Location)
	}

	if rerr := c.status.Require("Chain", "Apply"); rerr != nil {
		ex.AddSuppressed(rerr)
		f.fail(ex)
		return f
	}

	c.dispatch(ctx, ex, f.succeed, f.fail)
	return f
}

// dispatch hands ex to the first acceptor claiming its event
func (c *Chain) dispatch(ctx context.Context, ex *event.MessagingException, onSuccess func(*event.Event), onError func(*event.MessagingException)) {
	evt := ex.Event()
	for _, a := range c.all {
		if a.Accept(evt) {
			a.Route(ctx, ex, onSuccess, onError)
			return
		}
	}
	onError(c.noAcceptor(ex))
}

func (c *Chain) noAcceptor(ex *event.MessagingException) *event.MessagingException {
	err := errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrNoAcceptor, ex.ErrorType()),
		"Chain", "Dispatch", "select handler")
	c.logger.Error("No error handler accepted the event", "error_type", ex.ErrorType(), "event_id", ex.Event().ID())

	failed := event.NewMessagingException(err, ex.Event(), event.WithFailingComponent(c.location))
	failed.AddSuppressed(ex)
	return failed
}

// Router binds the chain to fixed continuations, for callers that integrate
// with their own scheduling instead of waiting on a Future. The chain must be
// initialised.
func (c *Chain) Router(onSuccess func(*event.Event), onError func(*event.MessagingException)) (*Router, error) {
	if err := c.status.Require("Chain", "Router"); err != nil {
		return nil, err
	}
	r := &Router{chain: c, onSuccess: onSuccess, onError: onError}
	for _, a := range c.Acceptors() {
		r.routes = append(r.routes, route{acceptor: a})
	}
	return r, nil
}

// Outcome is the result of resolving one fault: either the event produced by a
// handler that handled it, or the exception to propagate.
type Outcome struct {
	Event     *event.Event
	Exception *event.MessagingException
}

// Handled reports whether the fault was handled
func (o Outcome) Handled() bool {
	return o.Exception == nil
}

// Future is the pending Outcome of Chain.Apply
type Future struct {
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(o Outcome) {
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
	})
}

func (f *Future) succeed(evt *event.Event) {
	f.complete(Outcome{Event: evt})
}

func (f *Future) fail(ex *event.MessagingException) {
	f.complete(Outcome{Exception: ex})
}

// Done is closed once the outcome is available
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the outcome is available or ctx is done
func (f *Future) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, errors.WrapTransient(ctx.Err(), "Future", "Await", "wait for outcome")
	}
}

type route struct {
	acceptor Acceptor
}

// Router is a dispatch table with one route per acceptor of a chain
type Router struct {
	chain     *Chain
	onSuccess func(*event.Event)
	onError   func(*event.MessagingException)

	mu       sync.RWMutex
	routes   []route
	disposed bool
}

// Route dispatches an already resolved exception. It fails once the router
// is disposed.
func (r *Router) Route(ctx context.Context, ex *event.MessagingException) error {
	r.mu.RLock()
	if r.disposed {
		r.mu.RUnlock()
		return errors.WrapFatal(errors.ErrHandlerNotRunning, "Router", "Route", "dispatch")
	}
	routes := r.routes
	r.mu.RUnlock()

	if ex.ErrorType() == nil {
		ex = r.chain.deps.Resolver.Resolve(ex, ex.Event(), ex.FailingComponent())
	}

	evt := ex.Event()
	for _, rt := range routes {
		if rt.acceptor.Accept(evt) {
			rt.acceptor.Route(ctx, ex, r.onSuccess, r.onError)
			return nil
		}
	}
	r.onError(r.chain.noAcceptor(ex))
	return nil
}

// Dispose releases the routes without disposing the chain
func (r *Router) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposed = true
	r.routes = nil
}
