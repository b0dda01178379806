// Package flowfault is the error handling core of an integration flow runtime.
//
// When a processor of a flow fails, the failure travels through this module:
//
//	processor error
//	      ↓ handler.Resolver         failing component, error mappings
//	MessagingException              cause + event snapshot + handled flag
//	      ↓ errortype.Locator        Go error → ErrorType
//	handler.Chain                   first accepting on-error handler wins
//	      ↓ on-error-continue        handled, fault cleared, transaction committed
//	      ↓ on-error-propagate       rethrown, owned transaction rolled back
//	      ↓ on-critical-error        CRITICAL types, logged and always rethrown
//	event.ErrorContextManager       success/failure callbacks, possibly async
//
// Faults raised outside any flow, such as a dropped connection, go to
// system.Strategy instead, which notifies, rolls back the ambient transaction
// and schedules reconnection of CONNECTIVITY failures.
//
// # Packages
//
// Core:
//   - errortype: the namespaced ErrorType tree, repositories, matchers and the locator
//   - event: immutable events, event errors, MessagingException and the context manager
//   - handler: on-error handlers, chains, error mappings and global handlers
//   - system: the strategy for faults without an in-flight event
//
// Collaborators used through narrow interfaces:
//   - expression: the evaluator of `when` conditions
//   - transaction: the current transaction and its sqlx adapter
//   - notification: log and NATS notification sinks
//   - metric: Prometheus metrics and per-flow statistics
//
// Supporting:
//   - config: layered YAML configuration and building chains from it
//   - processor: configurable processors for handler sub-chains
//   - natsclient: the NATS connection behind notifications and publishing
//   - health: health of chains, the strategy and connections
//   - pkg/retry, pkg/worker, pkg/cache: backoff, worker pools, compiled expression cache
//
// # Quick start
//
//	cfg, err := config.LoadFile("configs/flowfault.yaml")
//	if err != nil {
//	    return err
//	}
//	flows, err := config.Build(cfg, config.BuildDeps{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer flows.Dispose()
//
//	chain, _ := flows.Chain("orders")
//	evt, err := chain.HandleException(ctx, processorErr, event.New(payload))
//	if err != nil {
//	    // unhandled: the caller propagates err
//	}
//	// handled: processing resumes with evt
//
// The flowfault binary in cmd/flowfault loads such a configuration, serves
// metrics and health, and replays sample faults through every flow.
package flowfault
