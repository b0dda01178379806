// Package handler implements error handler chains: the ordered acceptors a flow
// consults when one of its processors fails.
//
// # Dispatch
//
// A Chain resolves the raw failure into a typed *event.MessagingException and
// hands it to the first acceptor whose Accept returns true. Initialise completes
// the configured list: a synthetic on-critical-error handler goes first, so
// CRITICAL faults never reach user handlers, and a default on-error-propagate
// is appended unless the last handler already accepts everything. Only the
// last handler may accept everything.
//
//	chain := handler.NewChain(component.NewLocation("orders"), []handler.Acceptor{
//		handler.NewOnErrorHandler(handler.Config{Kind: handler.KindContinue, Type: "CONNECTIVITY"}, deps),
//		handler.NewOnErrorHandler(handler.Config{Kind: handler.KindPropagate}, deps),
//	}, deps)
//	if err := chain.Initialise(); err != nil { ... }
//	evt, err := chain.HandleException(ctx, procErr, evt)
//
// # Handler Kinds
//
//   - on-error-continue marks the fault handled, clears it from the event and
//     commits the transaction its flow owns.
//   - on-error-propagate rolls back the transaction its flow owns and re-raises
//     the fault after running its processors.
//   - on-critical-error accepts CRITICAL faults only and always re-raises them.
//
// A handler that itself fails propagates a new fault, flagged as raised in an
// error handler, with the original one suppressed.
//
// # Asynchronous Continuation
//
// Handlers register a pending context on the event (see event.AddContext)
// before running their processors, and resolve it when the processors finish.
// Processors implementing AsyncProcessor may finish on another goroutine;
// Chain.Apply returns a Future that completes whenever that happens.
package handler
