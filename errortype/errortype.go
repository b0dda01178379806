package errortype

import (
	"github.com/mulesoft/mule-sub047/component"
)

// Built-in identifiers of the CORE namespace
const (
	Any                         = "ANY"
	Source                      = "SOURCE"
	SourceResponse              = "SOURCE_RESPONSE"
	Unknown                     = "UNKNOWN"
	Critical                    = "CRITICAL"
	Transformation              = "TRANSFORMATION"
	Expression                  = "EXPRESSION"
	Routing                     = "ROUTING"
	CompositeRouting            = "COMPOSITE_ROUTING"
	Connectivity                = "CONNECTIVITY"
	RetryExhausted              = "RETRY_EXHAUSTED"
	Security                    = "SECURITY"
	ClientSecurity              = "CLIENT_SECURITY"
	ServerSecurity              = "SERVER_SECURITY"
	NotPermitted                = "NOT_PERMITTED"
	Validation                  = "VALIDATION"
	DuplicateMessage            = "DUPLICATE_MESSAGE"
	RedeliveryExhausted         = "REDELIVERY_EXHAUSTED"
	StreamMaximumSizeExceeded   = "STREAM_MAXIMUM_SIZE_EXCEEDED"
	Timeout                     = "TIMEOUT"
	SourceResponseGenerate      = "SOURCE_RESPONSE_GENERATE"
	SourceResponseSend          = "SOURCE_RESPONSE_SEND"
	SourceErrorResponseGenerate = "SOURCE_ERROR_RESPONSE_GENERATE"
	SourceErrorResponseSend     = "SOURCE_ERROR_RESPONSE_SEND"
	Overload                    = "OVERLOAD"
	FlowBackPressure            = "FLOW_BACK_PRESSURE"
	Fatal                       = "FATAL"
)

// ErrorType is a node of the fault classification tree. Instances are created by a
// Repository, never change afterwards and are compared by identity.
type ErrorType struct {
	id     component.Identifier
	parent *ErrorType
}

// Identifier returns the namespace-local name, e.g. "CONNECTIVITY"
func (t *ErrorType) Identifier() string {
	return t.id.Name
}

// Namespace returns the upper-case namespace, e.g. "HTTP"
func (t *ErrorType) Namespace() string {
	return t.id.Namespace
}

// ID returns the full identifier
func (t *ErrorType) ID() component.Identifier {
	return t.id
}

// Parent returns the parent type, nil for the roots ANY and CRITICAL
func (t *ErrorType) Parent() *ErrorType {
	return t.parent
}

// String returns "NAMESPACE:IDENTIFIER"
func (t *ErrorType) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.id.String()
}

// IsA reports whether t is ancestor or one of its descendants.
func (t *ErrorType) IsA(ancestor *ErrorType) bool {
	if ancestor == nil {
		return false
	}
	for cur := t; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Root returns the top-most ancestor of t
func (t *ErrorType) Root() *ErrorType {
	cur := t
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Typed is implemented by errors that already know their error type.
type Typed interface {
	ErrorType() *ErrorType
}

// TypedError attaches an error type to an error. The locator honours it before
// consulting any mapping table.
type TypedError struct {
	Type *ErrorType
	Err  error
}

// NewTypedError wraps err with t
func NewTypedError(t *ErrorType, err error) *TypedError {
	return &TypedError{Type: t, Err: err}
}

func (e *TypedError) Error() string {
	if e.Err == nil {
		return e.Type.String()
	}
	return e.Type.String() + ": " + e.Err.Error()
}

func (e *TypedError) Unwrap() error {
	return e.Err
}

// ErrorType returns the attached type
func (e *TypedError) ErrorType() *ErrorType {
	return e.Type
}
