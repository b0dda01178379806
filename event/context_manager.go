package event

import (
	"fmt"
	"sync"

	"github.com/mulesoft/mule-sub047/errors"
)

// Keyed is implemented by error handlers; the key identifies one handler instance.
type Keyed interface {
	HandlerKey() string
}

// HandlerContext is a pending resolution: handler H is resolving Exception for
// an event and will report through one of the two continuations.
type HandlerContext struct {
	Exception     *MessagingException
	OriginalEvent *Event
	OnSuccess     func(*Event)
	OnError       func(*MessagingException)
}

// ErrorContextManager keeps, per correlation id and handler, a stack of pending
// handler contexts. It is attached to an event and travels with every copy.
type ErrorContextManager struct {
	mu     sync.Mutex
	stacks map[string][]*HandlerContext
}

func newErrorContextManager() *ErrorContextManager {
	return &ErrorContextManager{stacks: make(map[string][]*HandlerContext)}
}

func contextKey(h Keyed, evt *Event) string {
	return evt.CorrelationID() + "_" + h.HandlerKey()
}

func (m *ErrorContextManager) push(key string, hc *HandlerContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stacks[key] = append(m.stacks[key], hc)
}

func (m *ErrorContextManager) peek(key string) (*HandlerContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.stacks[key]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

func (m *ErrorContextManager) pop(key string) (*HandlerContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.stacks[key]
	if len(stack) == 0 {
		return nil, false
	}
	hc := stack[len(stack)-1]
	stack[len(stack)-1] = nil
	if len(stack) == 1 {
		delete(m.stacks, key)
	} else {
		m.stacks[key] = stack[:len(stack)-1]
	}
	return hc, true
}

// Pending returns the number of unresolved contexts across all handlers
func (m *ErrorContextManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, stack := range m.stacks {
		n += len(stack)
	}
	return n
}

// AddContext registers a pending resolution of ex by h. When ex's event carries
// no manager yet one is attached; the returned event must be used from then on
// and is also stored on ex.
func AddContext(h Keyed, ex *MessagingException, onSuccess func(*Event), onError func(*MessagingException)) *Event {
	evt := ex.Event()
	m := evt.ErrorContext()
	if m == nil {
		m = newErrorContextManager()
		evt = evt.WithErrorContext(m)
		ex.SetEvent(evt)
	}

	m.push(contextKey(h, evt), &HandlerContext{
		Exception:     ex,
		OriginalEvent: evt,
		OnSuccess:     onSuccess,
		OnError:       onError,
	})
	return evt
}

// From returns the innermost pending context of h for evt without removing it
func From(h Keyed, evt *Event) (*HandlerContext, error) {
	if m := evt.ErrorContext(); m != nil {
		if hc, ok := m.peek(contextKey(h, evt)); ok {
			return hc, nil
		}
	}
	return nil, errors.WrapFatal(
		fmt.Errorf("%w for handler %s", errors.ErrNoHandlerContext, h.HandlerKey()),
		"ErrorContextManager", "From", "peek context")
}

func popFor(h Keyed, evt *Event, method string) (*HandlerContext, error) {
	if evt != nil {
		if m := evt.ErrorContext(); m != nil {
			if hc, ok := m.pop(contextKey(h, evt)); ok {
				return hc, nil
			}
		}
	}
	return nil, errors.WrapFatal(
		fmt.Errorf("%w for handler %s", errors.ErrNoHandlerContext, h.HandlerKey()),
		"ErrorContextManager", method, "pop context")
}

// ResolveHandling pops the innermost context of h and reports result. A handled
// exception goes to OnSuccess. Otherwise, when result is not the event stored in
// the exception, the exception takes over result (keeping the latest error)
// before OnError runs.
func ResolveHandling(h Keyed, result *Event) error {
	hc, err := popFor(h, result, "ResolveHandling")
	if err != nil {
		return err
	}

	ex := hc.Exception
	if ex.Handled() {
		hc.OnSuccess(result)
		return nil
	}

	if stored := ex.Event(); result != stored {
		reconciled := result
		if result.Error() == nil && stored != nil {
			reconciled = result.WithError(stored.Error())
		}
		ex.SetEvent(reconciled)
	}
	hc.OnError(ex)
	return nil
}

// ResolveFailure pops the innermost context of h and hands ex to OnError. It is
// used when the handler itself failed instead of producing a result.
func ResolveFailure(h Keyed, ex *MessagingException) error {
	hc, err := popFor(h, ex.Event(), "ResolveFailure")
	if err != nil {
		return err
	}
	hc.OnError(ex)
	return nil
}

// IsHandling reports whether ex's event is inside at least one pending resolution
func IsHandling(ex *MessagingException) bool {
	evt := ex.Event()
	if evt == nil || evt.ErrorContext() == nil {
		return false
	}
	return evt.ErrorContext().Pending() > 0
}
