// Package errors provides standardized error handling patterns for the error-handling core.
//
// # Overview
//
// Two concerns live here. The first is the module's own failure vocabulary: a
// three-class classification (Transient, Invalid, Fatal) used when the core itself
// fails, e.g. a duplicate error type registration or a chain that no acceptor can
// serve. The second is the set of sentinel errors that processors return and that
// the error type locator maps onto the error taxonomy (CONNECTIVITY, SECURITY,
// FLOW_BACK_PRESSURE, CRITICAL and so on).
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Strategy", "Reconnect", "reconnect")  // retryable
//	errors.WrapInvalid(err, "Chain", "Initialise", "validate")       // misconfiguration
//	errors.WrapFatal(err, "Manager", "From", "peek context")         // programmer error
//
// # Sentinels Recognised By The Locator
//
//   - Connectivity: ErrNoConnection, ErrConnectionLost, ErrConnectionTimeout, ErrRetryExhausted
//   - Security: ErrSecurity, ErrClientSecurity, ErrServerSecurity, ErrNotPermitted
//   - Data: ErrInvalidData, ErrParsingFailed, ErrValidation, ErrDuplicateMessage, ErrRouting,
//     ErrRedeliveryExhausted, ErrStreamMaximumSize
//   - Overload: ErrResourceExhausted, ErrRateLimited, ErrFlowBackPressure
//   - Critical: ErrFatal, ErrNestingDepthExceeded, *PanicError
//
// Processors should return (or wrap with %w) these variables instead of inventing
// new messages so that handlers configured with type="CONNECTIVITY" and friends
// see the fault.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
