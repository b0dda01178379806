package errortype

import (
	"context"
	"io/fs"
	"net"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/pkg/worker"
)

// Mapping maps one link of an error chain to an error type
type Mapping struct {
	Type  *ErrorType
	match func(link error) bool
}

// Matches reports whether the mapping applies to a single chain link
func (m Mapping) Matches(link error) bool {
	return m.match(link)
}

// MapSentinel maps a link equal to target, or a link whose Is method reports target.
func MapSentinel(target error, t *ErrorType) Mapping {
	return Mapping{Type: t, match: func(link error) bool {
		if link == target {
			return true
		}
		if is, ok := link.(interface{ Is(error) bool }); ok {
			return is.Is(target)
		}
		return false
	}}
}

// MapType maps links whose dynamic type is, or implements, E
func MapType[E error](t *ErrorType) Mapping {
	return Mapping{Type: t, match: func(link error) bool {
		_, ok := link.(E)
		return ok
	}}
}

// MapFunc maps links for which fn returns true
func MapFunc(fn func(link error) bool, t *ErrorType) Mapping {
	return Mapping{Type: t, match: fn}
}

// Locator resolves the error type of a Go error by walking its chain from the
// outermost link inwards (errors.Join branches depth-first). The whole chain is
// matched against the component-specific table before the global one; the
// first hit wins. Errors implementing Typed anywhere in the chain take precedence over
// every table.
type Locator struct {
	defaultType *ErrorType
	mappings    []Mapping

	mu         sync.RWMutex
	components map[component.Identifier][]Mapping
}

// LocatorOption configures a Locator
type LocatorOption func(*Locator)

// WithMappings appends global mappings after the defaults
func WithMappings(mappings ...Mapping) LocatorOption {
	return func(l *Locator) {
		l.mappings = append(l.mappings, mappings...)
	}
}

// WithComponentMappings sets overrides for one component kind
func WithComponentMappings(id component.Identifier, mappings ...Mapping) LocatorOption {
	return func(l *Locator) {
		l.components[id] = append(l.components[id], mappings...)
	}
}

// WithDefaultType overrides the fallback type (UNKNOWN by default)
func WithDefaultType(t *ErrorType) LocatorOption {
	return func(l *Locator) {
		l.defaultType = t
	}
}

// NewLocator creates a locator seeded with DefaultMappings(repo)
func NewLocator(repo Repository, opts ...LocatorOption) *Locator {
	l := &Locator{
		defaultType: repo.UnknownErrorType(),
		mappings:    DefaultMappings(repo),
		components:  make(map[component.Identifier][]Mapping),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddComponentMappings registers overrides for a component kind after construction,
// typically while a module is being loaded.
func (l *Locator) AddComponentMappings(id component.Identifier, mappings ...Mapping) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components[id] = append(l.components[id], mappings...)
}

// LookupErrorType resolves err using the global table
func (l *Locator) LookupErrorType(err error) *ErrorType {
	return l.lookup(err, nil)
}

// LookupComponentErrorType resolves err using the overrides for id, then the global table
func (l *Locator) LookupComponentErrorType(id component.Identifier, err error) *ErrorType {
	l.mu.RLock()
	overrides := l.components[id]
	l.mu.RUnlock()
	return l.lookup(err, overrides)
}

// DefaultType returns the fallback type
func (l *Locator) DefaultType() *ErrorType {
	return l.defaultType
}

func (l *Locator) lookup(err error, overrides []Mapping) *ErrorType {
	if err == nil {
		return l.defaultType
	}

	var found *ErrorType
	walk(err, func(link error) bool {
		if typed, ok := link.(Typed); ok && typed.ErrorType() != nil {
			found = typed.ErrorType()
			return true
		}
		return false
	})
	if found != nil {
		return found
	}

	for _, table := range [][]Mapping{overrides, l.mappings} {
		if found = firstMatch(err, table); found != nil {
			return found
		}
	}
	return l.defaultType
}

// firstMatch walks the whole chain of err against table
func firstMatch(err error, table []Mapping) *ErrorType {
	if len(table) == 0 {
		return nil
	}
	var found *ErrorType
	walk(err, func(link error) bool {
		for _, m := range table {
			if m.Type != nil && m.Matches(link) {
				found = m.Type
				return true
			}
		}
		return false
	})
	return found
}

// walk visits err and its wrapped errors depth-first until visit returns true
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return false
	}
	if visit(err) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if walk(inner, visit) {
				return true
			}
		}
	}
	return false
}

// DefaultMappings returns the global mapping table for the core taxonomy.
// Types repo does not know are skipped.
func DefaultMappings(repo Repository) []Mapping {
	get := func(name string) *ErrorType {
		t, _ := repo.GetErrorType(coreID(name))
		return t
	}

	connectivity := get(Connectivity)
	critical := repo.CriticalErrorType()

	candidates := []Mapping{
		MapType[*errors.PanicError](critical),
		MapSentinel(errors.ErrNestingDepthExceeded, critical),
		MapSentinel(errors.ErrFatal, get(Fatal)),

		MapSentinel(worker.ErrQueueFull, get(FlowBackPressure)),
		MapSentinel(errors.ErrFlowBackPressure, get(FlowBackPressure)),
		MapSentinel(errors.ErrResourceExhausted, get(Overload)),
		MapSentinel(errors.ErrRateLimited, get(Overload)),

		MapSentinel(errors.ErrRetryExhausted, get(RetryExhausted)),

		// context.DeadlineExceeded satisfies net.Error, so it goes before the network mappings
		MapSentinel(context.DeadlineExceeded, get(Timeout)),
		MapSentinel(nats.ErrTimeout, get(Timeout)),

		MapSentinel(errors.ErrNoConnection, connectivity),
		MapSentinel(errors.ErrConnectionLost, connectivity),
		MapSentinel(errors.ErrConnectionTimeout, connectivity),
		MapSentinel(nats.ErrConnectionClosed, connectivity),
		MapSentinel(nats.ErrNoServers, connectivity),
		MapSentinel(syscall.ECONNREFUSED, connectivity),
		MapSentinel(syscall.ECONNRESET, connectivity),
		MapType[*net.OpError](connectivity),
		MapType[net.Error](connectivity),

		MapSentinel(errors.ErrNotPermitted, get(NotPermitted)),
		MapSentinel(fs.ErrPermission, get(NotPermitted)),
		MapSentinel(errors.ErrClientSecurity, get(ClientSecurity)),
		MapSentinel(errors.ErrServerSecurity, get(ServerSecurity)),
		MapSentinel(errors.ErrSecurity, get(Security)),

		MapSentinel(errors.ErrExpression, get(Expression)),
		MapSentinel(errors.ErrInvalidData, get(Transformation)),
		MapSentinel(errors.ErrParsingFailed, get(Transformation)),
		MapSentinel(errors.ErrDuplicateMessage, get(DuplicateMessage)),
		MapSentinel(errors.ErrValidation, get(Validation)),
		MapSentinel(errors.ErrRedeliveryExhausted, get(RedeliveryExhausted)),
		MapSentinel(errors.ErrStreamMaximumSize, get(StreamMaximumSizeExceeded)),
		MapSentinel(errors.ErrRouting, get(Routing)),
	}

	mappings := candidates[:0]
	for _, m := range candidates {
		if m.Type != nil {
			mappings = append(mappings, m)
		}
	}
	return mappings
}
