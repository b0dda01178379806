package handler

import (
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
)

// ErrorMapping rewrites a located error type raised by one component, e.g.
// HTTP:CONNECTIVITY raised by "orders/processors/0" becomes APP:BACKEND_DOWN.
type ErrorMapping struct {
	Source errortype.Matcher
	Target *errortype.ErrorType
}

// Resolver turns raw failures into typed MessagingExceptions. The type comes
// from the locator, consulting the overrides of the failing component's kind
// when it is known, then the mappings of the failing component may replace it.
type Resolver struct {
	locator *errortype.Locator

	mu         sync.RWMutex
	mappings   map[string][]ErrorMapping
	components map[string]component.Identifier
}

// NewResolver creates a resolver over locator
func NewResolver(locator *errortype.Locator) *Resolver {
	return &Resolver{
		locator:    locator,
		mappings:   make(map[string][]ErrorMapping),
		components: make(map[string]component.Identifier),
	}
}

// AddMappings appends mappings for the component at location. The first
// matching mapping wins.
func (r *Resolver) AddMappings(location component.Location, mappings ...ErrorMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := location.String()
	r.mappings[key] = append(r.mappings[key], mappings...)
}

// BindComponent records the kind of the component at location, e.g.
// HTTP:request for "orders/processors/0". Faults raised there are typed with
// the locator overrides of that kind.
func (r *Resolver) BindComponent(location component.Location, id component.Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[location.String()] = id
}

// Resolve types err raised at failing. The overrides of the component kind
// bound to failing, if any, are consulted before the global table.
func (r *Resolver) Resolve(err error, evt *event.Event, failing component.Location) *event.MessagingException {
	return r.resolve(err, evt, failing, nil)
}

// ResolveComponent types err, consulting the overrides registered for the
// component id before the global mapping table.
func (r *Resolver) ResolveComponent(id component.Identifier, err error, evt *event.Event, failing component.Location) *event.MessagingException {
	return r.resolve(err, evt, failing, &id)
}

func (r *Resolver) resolve(
	err error,
	evt *event.Event,
	failing component.Location,
	id *component.Identifier,
) *event.MessagingException {
	ex := event.AsMessagingException(err, evt, event.WithFailingComponent(failing))
	if ex.ErrorType() != nil {
		return ex
	}

	base := ex.Event()
	if base == nil {
		base = event.New(nil)
	}

	loc := ex.FailingComponent()
	if loc.IsZero() {
		loc = failing
	}
	if id == nil {
		if bound, ok := r.component(loc); ok {
			id = &bound
		}
	}

	var t *errortype.ErrorType
	if id != nil {
		t = r.locator.LookupComponentErrorType(*id, ex.Cause())
	} else {
		t = r.locator.LookupErrorType(ex.Cause())
	}

	t = r.mapped(loc, t)
	ex.SetEvent(base.WithError(event.NewError(t, ex.Cause(), loc)))
	return ex
}

func (r *Resolver) component(loc component.Location) (component.Identifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.components[loc.String()]
	return id, ok
}

func (r *Resolver) mapped(loc component.Location, t *errortype.ErrorType) *errortype.ErrorType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings[loc.String()] {
		if m.Source != nil && m.Source.Match(t) {
			return m.Target
		}
	}
	return t
}
