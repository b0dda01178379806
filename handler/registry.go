package handler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
)

// GlobalRegistry holds named chain templates that flows reference instead of
// declaring their own handlers. Every reference gets its own chain, bound to
// the referencing location.
type GlobalRegistry struct {
	mu        sync.Mutex
	templates map[string]*Chain
	bound     map[string]map[component.Location]*Chain
	logger    *slog.Logger
}

// NewGlobalRegistry creates an empty registry
func NewGlobalRegistry(logger *slog.Logger) *GlobalRegistry {
	return &GlobalRegistry{
		templates: make(map[string]*Chain),
		bound:     make(map[string]map[component.Location]*Chain),
		logger:    component.Logger(logger, "global-handlers"),
	}
}

// Register adds a template under name. Names are unique.
func (r *GlobalRegistry) Register(name string, template *Chain) error {
	if name == "" || template == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: global handler needs a name and a chain", errors.ErrInvalidConfig),
			"GlobalRegistry", "Register", "validate")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[name]; ok {
		return errors.WrapInvalid(fmt.Errorf("%w: global handler %q already registered", errors.ErrInvalidConfig, name),
			"GlobalRegistry", "Register", "register")
	}
	r.templates[name] = template
	return nil
}

// Names returns the registered template names
func (r *GlobalRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// Acquire returns the initialised chain of name bound to location, creating it
// on first use. Acquiring the same location twice returns the same chain.
func (r *GlobalRegistry) Acquire(name string, location component.Location) (*Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	template, ok := r.templates[name]
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: global handler %q", errors.ErrMissingConfig, name),
			"GlobalRegistry", "Acquire", "lookup template")
	}

	refs := r.bound[name]
	if chain, ok := refs[location]; ok {
		return chain, nil
	}

	chain := template.DuplicateFor(location)
	if err := chain.Initialise(); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = make(map[component.Location]*Chain)
		r.bound[name] = refs
	}
	refs[location] = chain

	r.logger.Debug("Global handler referenced", "name", name, "location", location.String(), "references", len(refs))
	return chain, nil
}

// Release disposes the chain of name bound to location. Releasing an unknown
// reference is a no-op.
func (r *GlobalRegistry) Release(name string, location component.Location) error {
	r.mu.Lock()
	refs := r.bound[name]
	chain, ok := refs[location]
	if ok {
		delete(refs, location)
		if len(refs) == 0 {
			delete(r.bound, name)
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.logger.Debug("Global handler released", "name", name, "location", location.String())
	return chain.Dispose()
}

// References returns how many locations currently use name
func (r *GlobalRegistry) References(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound[name])
}
