package processor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/handler"
	"github.com/mulesoft/mule-sub047/notification"
)

// Env is what factories may use to build a processor
type Env struct {
	Logger     *slog.Logger
	Repository errortype.Repository
	// Publisher is optional; the publish processor fails to build without it
	Publisher notification.Publisher
}

// Factory builds a processor from its YAML params
type Factory func(params map[string]any, env Env) (handler.Processor, error)

// Registry maps processor names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	env       Env
}

// NewRegistry creates a registry holding the built-in processors
func NewRegistry(env Env) *Registry {
	if env.Repository == nil {
		env.Repository = handler.DefaultRepository()
	}
	env.Logger = component.Logger(env.Logger, "processor")

	r := &Registry{factories: make(map[string]Factory), env: env}
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds a factory. Names are unique, built-ins included.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return errors.WrapInvalid(fmt.Errorf("%w: processor %q already registered", errors.ErrInvalidConfig, name),
			"Registry", "Register", "register factory")
	}
	r.factories[name] = f
	return nil
}

// Build creates the processor registered as name
func (r *Registry) Build(name string, params map[string]any) (handler.Processor, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown processor %q", errors.ErrInvalidConfig, name),
			"Registry", "Build", "lookup factory")
	}

	p, err := f(params, r.env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Build", fmt.Sprintf("build %s", name))
	}
	return p, nil
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
