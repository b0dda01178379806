package config

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/handler"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/processor"
	"github.com/mulesoft/mule-sub047/transaction"
)

// BuildDeps are the runtime collaborators shared by every built chain.
// Zero fields get the handler defaults.
type BuildDeps struct {
	// Repository receives the custom error types. A fresh core repository is
	// created when nil.
	Repository      errortype.Repository
	Evaluator       handler.Evaluator
	Transactions    transaction.Coordinator
	Notifier        notification.Dispatcher
	MetricsRegistry *metric.MetricsRegistry
	// Publisher backs the publish processor
	Publisher notification.Publisher
	// Processors are custom processor factories added to the built-ins
	Processors map[string]processor.Factory
	Logger     *slog.Logger
}

// Flows are the error handler chains built from a configuration, one per flow
type Flows struct {
	Repository errortype.Repository
	Locator    *errortype.Locator
	Resolver   *handler.Resolver
	Global     *handler.GlobalRegistry

	chains     map[string]*handler.Chain
	references map[string]string
	stats      map[string]*metric.FlowStatistics
}

// Chain returns the chain of flow
func (f *Flows) Chain(flow string) (*handler.Chain, bool) {
	c, ok := f.chains[flow]
	return c, ok
}

// Statistics returns the statistics of flow. Flows referencing a global
// handler share the statistics of that handler.
func (f *Flows) Statistics(flow string) (*metric.FlowStatistics, bool) {
	if name, ok := f.references[flow]; ok {
		s, ok := f.stats[globalStatsKey(name)]
		return s, ok
	}
	s, ok := f.stats[flow]
	return s, ok
}

// Names returns the flow names, sorted
func (f *Flows) Names() []string {
	names := make([]string, 0, len(f.chains))
	for name := range f.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispose releases global references and disposes inline chains
func (f *Flows) Dispose() error {
	var errs []error
	for _, flow := range f.Names() {
		if name, ok := f.references[flow]; ok {
			errs = append(errs, f.Global.Release(name, component.NewLocation(flow)))
			continue
		}
		errs = append(errs, f.chains[flow].Dispose())
	}
	return stderrors.Join(errs...)
}

func globalStatsKey(name string) string {
	return "global:" + name
}

// Build registers the custom error types of cfg and builds the chain of every
// flow. The configuration is validated first.
func Build(cfg *Config, deps BuildDeps) (*Flows, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo := deps.Repository
	if repo == nil {
		repo = errortype.NewCoreRepository()
	}
	if err := registerErrorTypes(repo, cfg.ErrorTypes); err != nil {
		return nil, err
	}

	locator := errortype.NewLocator(repo)
	if err := addComponentErrorTypes(repo, locator, cfg.ComponentErrorTypes); err != nil {
		return nil, err
	}
	resolver := handler.NewResolver(locator)
	logger := component.Logger(deps.Logger, "config")

	processors := processor.NewRegistry(processor.Env{
		Logger:     deps.Logger,
		Repository: repo,
		Publisher:  deps.Publisher,
	})
	customs := make([]string, 0, len(deps.Processors))
	for name := range deps.Processors {
		customs = append(customs, name)
	}
	sort.Strings(customs)
	for _, name := range customs {
		if err := processors.Register(name, deps.Processors[name]); err != nil {
			return nil, err
		}
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	base := handler.Dependencies{
		Repository:      repo,
		Locator:         locator,
		Resolver:        resolver,
		Evaluator:       deps.Evaluator,
		Transactions:    deps.Transactions,
		Notifier:        deps.Notifier,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.Logger,
		MaxNestingDepth: cfg.MaxNestingDepth,
	}

	b := &builder{processors: processors}
	flows := &Flows{
		Repository: repo,
		Locator:    locator,
		Resolver:   resolver,
		Global:     handler.NewGlobalRegistry(deps.Logger),
		chains:     make(map[string]*handler.Chain),
		references: make(map[string]string),
		stats:      make(map[string]*metric.FlowStatistics),
	}

	for _, name := range sortedKeys(cfg.ErrorHandlers) {
		stats := metric.NewFlowStatistics(globalStatsKey(name), core)
		d := base
		d.Statistics = stats
		d = d.WithDefaults()

		location := component.NewLocation(globalStatsKey(name))
		acceptors, err := b.acceptors(fmt.Sprintf("error_handlers.%s", name), cfg.ErrorHandlers[name], d)
		if err != nil {
			return nil, err
		}
		template := handler.NewChain(location, acceptors, d)

		// Surface template errors now rather than at the first reference
		trial := template.DuplicateFor(location)
		if err := trial.Initialise(); err != nil {
			return nil, err
		}
		_ = trial.Dispose()

		if err := flows.Global.Register(name, template); err != nil {
			return nil, err
		}
		flows.stats[globalStatsKey(name)] = stats
	}

	for _, flowName := range sortedKeys(cfg.Flows) {
		flow := cfg.Flows[flowName]
		location := component.NewLocation(flowName)

		if err := addMappings(repo, resolver, flowName, flow.Mappings); err != nil {
			_ = flows.Dispose()
			return nil, err
		}
		for _, path := range sortedKeys(flow.Components) {
			resolver.BindComponent(component.NewLocation(flowName, path),
				component.MustParseIdentifier(flow.Components[path]))
		}

		ref := flow.ErrorHandler
		if ref == "" && len(flow.Handlers) == 0 {
			ref = cfg.DefaultErrorHandler
		}
		if ref != "" {
			chain, err := flows.Global.Acquire(ref, location)
			if err != nil {
				_ = flows.Dispose()
				return nil, err
			}
			flows.chains[flowName] = chain
			flows.references[flowName] = ref
			continue
		}

		stats := metric.NewFlowStatistics(flowName, core)
		d := base
		d.Statistics = stats
		d = d.WithDefaults()

		acceptors, err := b.acceptors(fmt.Sprintf("flows.%s.handlers", flowName), flow.Handlers, d)
		if err != nil {
			_ = flows.Dispose()
			return nil, err
		}
		chain := handler.NewChain(location, acceptors, d)
		if err := chain.Initialise(); err != nil {
			_ = flows.Dispose()
			return nil, err
		}
		flows.chains[flowName] = chain
		flows.stats[flowName] = stats
	}

	logger.Info("Error handling configured",
		"flows", len(flows.chains), "global_handlers", len(cfg.ErrorHandlers), "error_types", len(cfg.ErrorTypes))
	return flows, nil
}

type builder struct {
	processors *processor.Registry
}

func (b *builder) acceptors(path string, cfgs []HandlerConfig, deps handler.Dependencies) ([]handler.Acceptor, error) {
	acceptors := make([]handler.Acceptor, 0, len(cfgs))
	for i, hc := range cfgs {
		kind, _ := handler.ParseKind(hc.Kind)

		processors := make([]handler.Processor, 0, len(hc.Processors))
		for j, pc := range hc.Processors {
			p, err := b.processors.Build(pc.Name, pc.Params)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Config", "Build", fmt.Sprintf("%s[%d].processors[%d]", path, i, j))
			}
			processors = append(processors, p)
		}

		acceptors = append(acceptors, handler.NewOnErrorHandler(handler.Config{
			Kind:                kind,
			Name:                hc.Name,
			Type:                hc.Type,
			When:                hc.When,
			LogException:        hc.LogException,
			EnableNotifications: hc.EnableNotifications,
			Processors:          processors,
		}, deps))
	}
	return acceptors, nil
}

func registerErrorTypes(repo errortype.Repository, types []ErrorTypeConfig) error {
	for _, et := range types {
		id, err := component.ParseIdentifier(et.ID)
		if err != nil {
			return err
		}

		var parent *errortype.ErrorType
		if et.Parent != "" {
			pid, err := component.ParseIdentifier(et.Parent)
			if err != nil {
				return err
			}
			p, ok := repo.GetErrorType(pid)
			if !ok {
				return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownErrorType, pid),
					"Config", "Build", fmt.Sprintf("resolve parent of %s", id))
			}
			parent = p
		}

		if _, err := repo.AddErrorType(id, parent); err != nil {
			return err
		}
	}
	return nil
}

// addMappings resolves the mappings of a flow
func addMappings(repo errortype.Repository, resolver *handler.Resolver, flow string, mappings []MappingConfig) error {
	for _, m := range mappings {
		source, err := errortype.ParseMatcher(repo, m.Source)
		if err != nil {
			return err
		}
		target, err := targetType(repo, m.Target, fmt.Sprintf("map errors of %s/%s", flow, m.Component))
		if err != nil {
			return err
		}
		resolver.AddMappings(component.NewLocation(flow, m.Component), handler.ErrorMapping{Source: source, Target: target})
	}
	return nil
}

// addComponentErrorTypes registers, per component kind, the types of errors
// whose message contains a given text
func addComponentErrorTypes(repo errortype.Repository, locator *errortype.Locator, overrides []ComponentErrorTypeConfig) error {
	for _, o := range overrides {
		id, err := component.ParseIdentifier(o.Component)
		if err != nil {
			return err
		}
		t, err := targetType(repo, o.Type, fmt.Sprintf("type errors of %s", id))
		if err != nil {
			return err
		}
		contains := o.Contains
		locator.AddComponentMappings(id, errortype.MapFunc(func(link error) bool {
			return strings.Contains(link.Error(), contains)
		}, t))
	}
	return nil
}

// targetType returns the type named by s. A type outside the CORE namespace
// that is not declared is registered under ANY.
func targetType(repo errortype.Repository, s, action string) (*errortype.ErrorType, error) {
	id, err := component.ParseIdentifier(s)
	if err != nil {
		return nil, err
	}
	if t, ok := repo.LookupErrorType(id); ok {
		return t, nil
	}
	if id.Namespace == component.DefaultNamespace {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownErrorType, id), "Config", "Build", action)
	}
	return repo.AddErrorType(id, nil)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
