package event

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
)

func TestNew(t *testing.T) {
	evt := New("payload", WithCorrelationID("order-1"), WithVariables(map[string]any{"a": 1}))

	assert.Equal(t, "payload", evt.Payload())
	assert.Equal(t, "order-1", evt.CorrelationID())
	assert.NotEmpty(t, evt.ID())
	assert.Equal(t, 0, evt.Context().Depth)
	assert.Nil(t, evt.Error())
	assert.Nil(t, evt.ErrorContext())
	assert.False(t, evt.CreatedAt().IsZero())

	v, ok := evt.Variable("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	generated := New(nil)
	assert.Equal(t, generated.ID(), generated.CorrelationID())
}

func TestEvent_CopyOnWrite(t *testing.T) {
	vars := map[string]any{"k": "v"}
	original := New("one", WithVariables(vars))
	vars["k"] = "changed"

	updated := original.WithPayload("two").WithVariable("x", 42)

	assert.Equal(t, "one", original.Payload())
	assert.Equal(t, "two", updated.Payload())
	_, has := original.Variable("x")
	assert.False(t, has)
	v, _ := original.Variable("k")
	assert.Equal(t, "v", v)

	snapshot := updated.Variables()
	snapshot["x"] = 0
	v, _ = updated.Variable("x")
	assert.Equal(t, 42, v)

	removed := updated.WithoutVariable("x")
	_, has = removed.Variable("x")
	assert.False(t, has)
	assert.Same(t, removed, removed.WithoutVariable("missing"))
}

func TestEvent_ErrorField(t *testing.T) {
	repo := errortype.NewCoreRepository()
	connectivity, _ := repo.LookupErrorType(component.MustParseIdentifier("CONNECTIVITY"))

	evt := New("p")
	failing := component.NewLocation("orders", "processors", "1")
	withErr := evt.WithError(NewError(connectivity, errors.ErrConnectionLost, failing))

	assert.Nil(t, evt.Error())
	require.NotNil(t, withErr.Error())
	assert.Same(t, connectivity, withErr.Error().Type)
	assert.Equal(t, "connection lost", withErr.Error().Description)
	assert.Contains(t, withErr.Error().DetailedDescription, "orders/processors/1")
	assert.Equal(t, "CORE:CONNECTIVITY: connection lost", withErr.Error().String())

	cleared := withErr.WithoutError()
	assert.Nil(t, cleared.Error())
	assert.Same(t, evt, evt.WithoutError())

	parent := withErr.Error().WithChildren(NewError(connectivity, fmt.Errorf("route 2"), component.Location{}))
	assert.Len(t, parent.Children, 1)
	assert.Empty(t, withErr.Error().Children)
}

func TestEvent_ChildContext(t *testing.T) {
	root := New("p", WithLocation(component.NewLocation("orders")))
	loc := component.NewLocation("orders", "errorHandler", "0")

	child := root.ChildContext(loc)
	assert.Equal(t, root.CorrelationID(), child.CorrelationID())
	assert.NotEqual(t, root.ID(), child.ID())
	assert.Equal(t, root.ID(), child.Context().ParentID)
	assert.Equal(t, 1, child.Context().Depth)
	assert.Equal(t, loc, child.Context().Location)

	grandchild := child.ChildContext(loc.Child("1"))
	assert.Equal(t, 2, grandchild.Context().Depth)

	back := grandchild.WithPayload("changed").ParentContext().ParentContext()
	assert.Equal(t, root.ID(), back.ID())
	assert.Equal(t, "changed", back.Payload())
	assert.Same(t, root, root.ParentContext())
}

func TestCurrent(t *testing.T) {
	_, ok := Current(context.Background())
	assert.False(t, ok)

	evt := New("p")
	got, ok := Current(WithCurrent(context.Background(), evt))
	require.True(t, ok)
	assert.Same(t, evt, got)
}

func TestMessagingException(t *testing.T) {
	evt := New("p")
	loc := component.NewLocation("orders", "processors", "0")
	ex := NewMessagingException(errors.ErrConnectionLost, evt, WithFailingComponent(loc))

	assert.Equal(t, "orders/processors/0: connection lost", ex.Error())
	assert.ErrorIs(t, ex, errors.ErrConnectionLost)
	assert.Same(t, evt, ex.Event())
	assert.Equal(t, loc, ex.FailingComponent())
	assert.False(t, ex.Handled())
	assert.False(t, ex.InErrorHandler())
	assert.Nil(t, ex.ErrorType())

	ex.SetInErrorHandler(true)
	ex.SetCauseRollback(true)
	assert.True(t, ex.InErrorHandler())
	assert.True(t, ex.CauseRollback())

	ex.AddSuppressed(nil)
	ex.AddSuppressed(fmt.Errorf("rollback failed"))
	assert.Len(t, ex.Suppressed(), 1)

	inner := NewMessagingException(fmt.Errorf("boom"), nil, WithInErrorHandler())
	assert.True(t, inner.InErrorHandler())
	assert.Equal(t, "boom", inner.Error())
}

func TestAsMessagingException(t *testing.T) {
	evt := New("p")
	existing := NewMessagingException(errors.ErrValidation, nil)

	reused := AsMessagingException(fmt.Errorf("wrapped: %w", existing), evt)
	assert.Same(t, existing, reused)
	assert.Same(t, evt, reused.Event())

	fresh := AsMessagingException(errors.ErrValidation, evt)
	assert.NotSame(t, existing, fresh)
	assert.ErrorIs(t, fresh, errors.ErrValidation)
}

func TestMessagingException_TypedForLocator(t *testing.T) {
	repo := errortype.NewCoreRepository()
	security, _ := repo.LookupErrorType(component.MustParseIdentifier("SECURITY"))
	locator := errortype.NewLocator(repo)

	evt := New("p").WithError(NewError(security, errors.ErrConnectionLost, component.Location{}))
	ex := NewMessagingException(errors.ErrConnectionLost, evt)

	// The type already on the event wins over the cause's default mapping
	assert.Same(t, security, locator.LookupErrorType(ex))

	untyped := NewMessagingException(errors.ErrConnectionLost, New("p"))
	assert.Equal(t, "CONNECTIVITY", locator.LookupErrorType(untyped).Identifier())
}

func TestMessagingException_HandledIsSticky(t *testing.T) {
	ex := NewMessagingException(errors.ErrValidation, New("p"))
	ex.MarkHandled()
	ex.MarkHandled()
	ex.SetEvent(ex.Event().WithError(&Error{Description: "later"}))
	assert.True(t, ex.Handled())
}
