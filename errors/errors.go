// Package errors provides standardized error handling patterns for the error-handling core.
// It includes error classification, the sentinel errors recognised by the error type
// locator, and helper functions for consistent error wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Configuration and lifecycle errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingConfig      = errors.New("missing required configuration")
	ErrNotInitialised     = errors.New("component not initialised")
	ErrAlreadyInitialised = errors.New("component already initialised")
	ErrDisposed           = errors.New("component disposed")

	// Error type registry errors
	ErrDuplicateErrorType = errors.New("duplicate error type")
	ErrUnknownErrorType   = errors.New("unknown error type")
	ErrReadOnlyRepository = errors.New("error type repository is read-only")
	ErrEmptyMatcher       = errors.New("disjunctive matcher requires at least one matcher")

	// Dispatch errors
	ErrNoAcceptor        = errors.New("no error handler accepted the event")
	ErrNoHandlerContext  = errors.New("no error handling context registered")
	ErrHandlerNotRunning = errors.New("error handler route disposed")

	// Transaction errors
	ErrTransactionNotActive = errors.New("transaction not active")

	// Connection and networking errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrRetryExhausted    = errors.New("reconnection attempts exhausted")

	// Security errors
	ErrSecurity       = errors.New("security failure")
	ErrClientSecurity = errors.New("client security failure")
	ErrServerSecurity = errors.New("server security failure")
	ErrNotPermitted   = errors.New("operation not permitted")

	// Data processing errors
	ErrInvalidData         = errors.New("invalid data format")
	ErrParsingFailed       = errors.New("parsing failed")
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateMessage    = errors.New("duplicate message")
	ErrRouting             = errors.New("routing failed")
	ErrRedeliveryExhausted = errors.New("redelivery attempts exhausted")
	ErrStreamMaximumSize   = errors.New("stream maximum size exceeded")
	ErrExpression          = errors.New("expression evaluation failed")

	// Resource errors
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrRateLimited       = errors.New("rate limited")
	ErrFlowBackPressure  = errors.New("flow back-pressure rejection")

	// Unrecoverable runtime errors
	ErrFatal                = errors.New("fatal runtime error")
	ErrNestingDepthExceeded = errors.New("maximum nesting depth exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// PanicError carries a value recovered from a panic inside a processor.
// The locator treats it as a critical, unhandleable fault.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the recovered value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		return true
	}

	return errors.Is(err, ErrFatal) ||
		errors.Is(err, ErrNestingDepthExceeded) ||
		errors.Is(err, ErrNoAcceptor) ||
		errors.Is(err, ErrNoHandlerContext)
}

// IsInvalid checks if an error is due to invalid input or configuration
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrDuplicateErrorType) ||
		errors.Is(err, ErrUnknownErrorType) ||
		errors.Is(err, ErrInvalidData)
}

// Classify returns the error class for an error. Fatal wins over invalid,
// invalid over transient; anything unrecognised is treated as transient.
func Classify(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
