package component

import (
	"fmt"
	"sync"

	"github.com/mulesoft/mule-sub047/errors"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialised
	StateCreated State = iota
	// StateInitialised indicates component finished Initialise and is usable
	StateInitialised
	// StateDisposed indicates component released its resources
	StateDisposed
	// StateFailed indicates Initialise returned an error
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialised:
		return "initialised"
	case StateDisposed:
		return "disposed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle is implemented by handlers, chains and strategies:
//   - Initialise() error  // validate configuration, acquire resources
//   - Dispose() error     // release resources; safe to call more than once
type Lifecycle interface {
	Initialise() error
	Dispose() error
}

// Status tracks the lifecycle state of one component and serialises transitions.
// The zero value is ready to use.
type Status struct {
	mu    sync.RWMutex
	state State
}

// State returns the current state
func (s *Status) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialise runs fn once, moving to StateInitialised on success or StateFailed
// on error. A failed component may be initialised again after fixing its config.
func (s *Status) Initialise(name string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateInitialised:
		return errors.WrapInvalid(errors.ErrAlreadyInitialised, name, "Initialise", "initialise")
	case StateDisposed:
		return errors.WrapInvalid(errors.ErrDisposed, name, "Initialise", "initialise")
	}

	if fn != nil {
		if err := fn(); err != nil {
			s.state = StateFailed
			return err
		}
	}
	s.state = StateInitialised
	return nil
}

// Dispose runs fn if the component was initialised and moves to StateDisposed.
// Disposing twice is a no-op.
func (s *Status) Dispose(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisposed {
		return nil
	}
	wasInitialised := s.state == StateInitialised
	s.state = StateDisposed

	if wasInitialised && fn != nil {
		return fn()
	}
	return nil
}

// Require returns ErrNotInitialised unless the component is initialised
func (s *Status) Require(name, method string) error {
	state := s.State()
	if state == StateInitialised {
		return nil
	}
	return errors.WrapFatal(
		fmt.Errorf("%w: state is %s", errors.ErrNotInitialised, state), name, method, "check lifecycle")
}
