// Package event holds the immutable event value that travels through a flow,
// the MessagingException that carries a fault together with that event, and the
// ErrorContextManager that tracks pending error-handler resolutions.
//
// Events are copy-on-write: WithPayload, WithError, ChildContext and friends
// return a new *Event and never touch the receiver. The context manager is a
// typed field that every copy shares by reference, so a handler that suspends
// between routing and resolution finds its pending context on whichever copy of
// the event comes back.
//
//	evt = event.AddContext(handler, ex, onSuccess, onError) // may attach a manager
//	...                                                     // route, possibly async
//	err := event.ResolveHandling(handler, result)           // pops, calls a continuation
//
// Contexts are kept per correlation id and handler key as a stack, so nested
// invocations of the same handler resolve innermost first.
//
// The event currently processed by a goroutine is carried in a context.Context
// with WithCurrent and read back with Current.
package event
