package event

import (
	"fmt"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errortype"
)

// Error is the fault description carried by an event once processing failed
type Error struct {
	Type                *errortype.ErrorType
	Cause               error
	Description         string
	DetailedDescription string
	FailingComponent    component.Location
	Children            []*Error
}

// NewError describes cause as a fault of type t raised at failing
func NewError(t *errortype.ErrorType, cause error, failing component.Location) *Error {
	e := &Error{Type: t, Cause: cause, FailingComponent: failing}
	if cause != nil {
		e.Description = cause.Error()
		e.DetailedDescription = fmt.Sprintf("%s (%T)", cause.Error(), cause)
	}
	if !failing.IsZero() {
		e.DetailedDescription = fmt.Sprintf("%s at %s", e.DetailedDescription, failing)
	}
	return e
}

// WithChildren returns a copy holding the errors of parallel routes
func (e *Error) WithChildren(children ...*Error) *Error {
	c := *e
	c.Children = append(append([]*Error(nil), e.Children...), children...)
	return &c
}

func (e *Error) String() string {
	if e == nil {
		return "<no error>"
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Description)
}
