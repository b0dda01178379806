// Package errortype implements the fault taxonomy of the error-handling core.
//
// # Types and repositories
//
// An ErrorType is an immutable node in a namespaced tree. Ordinary, handleable
// types descend from CORE:ANY; CORE:CRITICAL is a separate root for faults no
// user handler may catch (OVERLOAD, FLOW_BACK_PRESSURE and FATAL hang under it).
// Types are compared by identity, so each (namespace, identifier) pair has
// exactly one instance per repository.
//
//	repo := errortype.NewCoreRepository()
//	notFound, err := repo.AddErrorType(component.NewIdentifier("HTTP", "NOT_FOUND"), nil)
//
// Module types can be kept apart from the core with a composite repository, and
// exposed to a consumer through a read-only filtered view:
//
//	app := errortype.NewCompositeRepository(errortype.NewScopedRepository(), core)
//	view := errortype.NewFilteredRepository(app, "HTTP")
//
// # Matchers
//
// SingleMatcher matches a type and its descendants, never its ancestors.
// DisjunctiveMatcher ORs several matchers and refuses to be built empty.
// WildcardMatcher handles "*:NAME" and "NS:*". ParseMatcher compiles the
// comma-separated lists used in handler configuration.
//
// # Locator
//
// The Locator maps a Go error to an ErrorType by walking its wrap chain from the
// outside in and consulting per-component overrides before the global table.
// Sentinels from the errors package, net and syscall connection errors, NATS
// connection errors, worker queue saturation and recovered panics all have
// default mappings; anything else is UNKNOWN.
package errortype
