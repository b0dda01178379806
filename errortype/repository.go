package errortype

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
)

// Repository owns the error types known to a runtime.
//
// Handleable types are visible to handler type= matching through LookupErrorType;
// internal types (CRITICAL and its descendants, for instance) are only reachable
// through GetErrorType.
type Repository interface {
	AddErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error)
	AddInternalErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error)
	LookupErrorType(id component.Identifier) (*ErrorType, bool)
	GetErrorType(id component.Identifier) (*ErrorType, bool)
	ErrorNamespaces() []string

	AnyErrorType() *ErrorType
	SourceErrorType() *ErrorType
	SourceResponseErrorType() *ErrorType
	UnknownErrorType() *ErrorType
	CriticalErrorType() *ErrorType
}

// DefaultRepository is the in-memory Repository. Registration is serialised so
// modules may register concurrently during startup.
type DefaultRepository struct {
	mu         sync.RWMutex
	handleable map[component.Identifier]*ErrorType
	internal   map[component.Identifier]*ErrorType

	anyType, sourceType, sourceResponseType, unknownType, criticalType *ErrorType
}

// NewRepository creates a repository holding the built-in types ANY, SOURCE,
// SOURCE_RESPONSE, UNKNOWN (handleable) and CRITICAL (internal).
func NewRepository() *DefaultRepository {
	r := NewScopedRepository()

	r.anyType = r.mustAdd(coreID(Any), nil, false)
	r.sourceType = r.mustAdd(coreID(Source), r.anyType, false)
	r.sourceResponseType = r.mustAdd(coreID(SourceResponse), r.anyType, false)
	r.unknownType = r.mustAdd(coreID(Unknown), r.anyType, false)
	r.criticalType = r.mustAdd(coreID(Critical), nil, true)

	return r
}

// NewScopedRepository creates an empty repository without built-ins, meant to be
// the child of a CompositeRepository so that module types live apart from the core.
func NewScopedRepository() *DefaultRepository {
	return &DefaultRepository{
		handleable: make(map[component.Identifier]*ErrorType),
		internal:   make(map[component.Identifier]*ErrorType),
	}
}

// NewCoreRepository creates a repository with the built-ins plus the full core taxonomy.
func NewCoreRepository() *DefaultRepository {
	r := NewRepository()
	anyType := r.anyType

	r.mustAdd(coreID(Transformation), anyType, false)
	r.mustAdd(coreID(Expression), anyType, false)
	routing := r.mustAdd(coreID(Routing), anyType, false)
	r.mustAdd(coreID(CompositeRouting), routing, false)
	connectivity := r.mustAdd(coreID(Connectivity), anyType, false)
	r.mustAdd(coreID(RetryExhausted), connectivity, false)
	security := r.mustAdd(coreID(Security), anyType, false)
	r.mustAdd(coreID(ClientSecurity), security, false)
	serverSecurity := r.mustAdd(coreID(ServerSecurity), security, false)
	r.mustAdd(coreID(NotPermitted), serverSecurity, false)
	validation := r.mustAdd(coreID(Validation), anyType, false)
	r.mustAdd(coreID(DuplicateMessage), validation, false)
	r.mustAdd(coreID(RedeliveryExhausted), anyType, false)
	r.mustAdd(coreID(StreamMaximumSizeExceeded), anyType, false)
	r.mustAdd(coreID(Timeout), anyType, false)
	r.mustAdd(coreID(SourceResponseGenerate), r.sourceResponseType, false)
	r.mustAdd(coreID(SourceResponseSend), r.sourceResponseType, false)
	r.mustAdd(coreID(SourceErrorResponseGenerate), r.sourceType, true)
	r.mustAdd(coreID(SourceErrorResponseSend), r.sourceType, true)
	overload := r.mustAdd(coreID(Overload), r.criticalType, true)
	r.mustAdd(coreID(FlowBackPressure), overload, true)
	r.mustAdd(coreID(Fatal), r.criticalType, true)

	return r
}

func coreID(name string) component.Identifier {
	return component.NewIdentifier(component.DefaultNamespace, name)
}

func (r *DefaultRepository) mustAdd(id component.Identifier, parent *ErrorType, internal bool) *ErrorType {
	t, err := r.add(id, parent, internal)
	if err != nil {
		panic(err)
	}
	return t
}

// AddErrorType registers a handleable type. A nil parent defaults to ANY.
func (r *DefaultRepository) AddErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error) {
	return r.add(id, r.defaultParent(parent), false)
}

// AddInternalErrorType registers a type that handler type= matching cannot see.
func (r *DefaultRepository) AddInternalErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error) {
	return r.add(id, r.defaultParent(parent), true)
}

func (r *DefaultRepository) defaultParent(parent *ErrorType) *ErrorType {
	if parent == nil {
		return r.anyType
	}
	return parent
}

func (r *DefaultRepository) add(id component.Identifier, parent *ErrorType, internal bool) (*ErrorType, error) {
	id = component.NewIdentifier(id.Namespace, id.Name)
	if id.Name == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Repository", "AddErrorType", "register unnamed type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.containsLocked(id) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateErrorType, id), "Repository", "AddErrorType",
			"register type")
	}

	t := &ErrorType{id: id, parent: parent}
	if internal {
		r.internal[id] = t
	} else {
		r.handleable[id] = t
	}
	return t, nil
}

func (r *DefaultRepository) containsLocked(id component.Identifier) bool {
	_, inHandleable := r.handleable[id]
	_, inInternal := r.internal[id]
	return inHandleable || inInternal
}

// LookupErrorType searches handleable types only
func (r *DefaultRepository) LookupErrorType(id component.Identifier) (*ErrorType, bool) {
	id = component.NewIdentifier(id.Namespace, id.Name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.handleable[id]
	return t, ok
}

// GetErrorType searches handleable types, then internal ones
func (r *DefaultRepository) GetErrorType(id component.Identifier) (*ErrorType, bool) {
	id = component.NewIdentifier(id.Namespace, id.Name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.handleable[id]; ok {
		return t, true
	}
	t, ok := r.internal[id]
	return t, ok
}

// ErrorNamespaces returns the sorted namespaces that have at least one type
func (r *DefaultRepository) ErrorNamespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for id := range r.handleable {
		seen[id.Namespace] = struct{}{}
	}
	for id := range r.internal {
		seen[id.Namespace] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AnyErrorType returns ANY
func (r *DefaultRepository) AnyErrorType() *ErrorType { return r.anyType }

// SourceErrorType returns SOURCE
func (r *DefaultRepository) SourceErrorType() *ErrorType { return r.sourceType }

// SourceResponseErrorType returns SOURCE_RESPONSE
func (r *DefaultRepository) SourceResponseErrorType() *ErrorType { return r.sourceResponseType }

// UnknownErrorType returns UNKNOWN
func (r *DefaultRepository) UnknownErrorType() *ErrorType { return r.unknownType }

// CriticalErrorType returns CRITICAL
func (r *DefaultRepository) CriticalErrorType() *ErrorType { return r.criticalType }

// CompositeRepository layers a child repository over a parent. New types are
// registered in the child; lookups fall back to the parent; built-ins come from
// the parent so that identity matching works across both.
type CompositeRepository struct {
	child  Repository
	parent Repository
	mu     sync.Mutex
}

// NewCompositeRepository creates a repository over child and parent. Usually the
// child comes from NewScopedRepository and the parent is the core repository.
func NewCompositeRepository(child, parent Repository) *CompositeRepository {
	return &CompositeRepository{child: child, parent: parent}
}

// AddErrorType registers in the child after checking the parent for duplicates
func (c *CompositeRepository) AddErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkParent(id); err != nil {
		return nil, err
	}
	if parent == nil {
		parent = c.AnyErrorType()
	}
	return c.child.AddErrorType(id, parent)
}

// AddInternalErrorType registers in the child after checking the parent for duplicates
func (c *CompositeRepository) AddInternalErrorType(id component.Identifier, parent *ErrorType) (*ErrorType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkParent(id); err != nil {
		return nil, err
	}
	if parent == nil {
		parent = c.AnyErrorType()
	}
	return c.child.AddInternalErrorType(id, parent)
}

func (c *CompositeRepository) checkParent(id component.Identifier) error {
	if _, exists := c.parent.GetErrorType(id); exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateErrorType, component.NewIdentifier(id.Namespace, id.Name)),
			"CompositeRepository", "AddErrorType", "register type")
	}
	return nil
}

// LookupErrorType searches the child then the parent
func (c *CompositeRepository) LookupErrorType(id component.Identifier) (*ErrorType, bool) {
	if t, ok := c.child.LookupErrorType(id); ok {
		return t, true
	}
	return c.parent.LookupErrorType(id)
}

// GetErrorType searches the child then the parent
func (c *CompositeRepository) GetErrorType(id component.Identifier) (*ErrorType, bool) {
	if t, ok := c.child.GetErrorType(id); ok {
		return t, true
	}
	return c.parent.GetErrorType(id)
}

// ErrorNamespaces merges both repositories' namespaces
func (c *CompositeRepository) ErrorNamespaces() []string {
	seen := make(map[string]struct{})
	for _, ns := range c.child.ErrorNamespaces() {
		seen[ns] = struct{}{}
	}
	for _, ns := range c.parent.ErrorNamespaces() {
		seen[ns] = struct{}{}
	}
	return sortedKeys(seen)
}

// AnyErrorType returns the parent's ANY
func (c *CompositeRepository) AnyErrorType() *ErrorType { return c.parent.AnyErrorType() }

// SourceErrorType returns the parent's SOURCE
func (c *CompositeRepository) SourceErrorType() *ErrorType { return c.parent.SourceErrorType() }

// SourceResponseErrorType returns the parent's SOURCE_RESPONSE
func (c *CompositeRepository) SourceResponseErrorType() *ErrorType {
	return c.parent.SourceResponseErrorType()
}

// UnknownErrorType returns the parent's UNKNOWN
func (c *CompositeRepository) UnknownErrorType() *ErrorType { return c.parent.UnknownErrorType() }

// CriticalErrorType returns the parent's CRITICAL
func (c *CompositeRepository) CriticalErrorType() *ErrorType { return c.parent.CriticalErrorType() }

// FilteredRepository is a read-only view restricted to a set of namespaces.
// The CORE namespace is always visible.
type FilteredRepository struct {
	delegate   Repository
	namespaces map[string]struct{}
}

// NewFilteredRepository creates a read-only view of delegate
func NewFilteredRepository(delegate Repository, namespaces ...string) *FilteredRepository {
	visible := map[string]struct{}{component.DefaultNamespace: {}}
	for _, ns := range namespaces {
		visible[component.NewIdentifier(ns, "x").Namespace] = struct{}{}
	}
	return &FilteredRepository{delegate: delegate, namespaces: visible}
}

func (f *FilteredRepository) visible(id component.Identifier) bool {
	_, ok := f.namespaces[component.NewIdentifier(id.Namespace, id.Name).Namespace]
	return ok
}

// AddErrorType always fails
func (f *FilteredRepository) AddErrorType(id component.Identifier, _ *ErrorType) (*ErrorType, error) {
	return nil, errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrReadOnlyRepository, id), "FilteredRepository", "AddErrorType", "register type")
}

// AddInternalErrorType always fails
func (f *FilteredRepository) AddInternalErrorType(id component.Identifier, _ *ErrorType) (*ErrorType, error) {
	return nil, errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrReadOnlyRepository, id), "FilteredRepository", "AddInternalErrorType",
		"register type")
}

// LookupErrorType misses for namespaces outside the view
func (f *FilteredRepository) LookupErrorType(id component.Identifier) (*ErrorType, bool) {
	if !f.visible(id) {
		return nil, false
	}
	return f.delegate.LookupErrorType(id)
}

// GetErrorType misses for namespaces outside the view
func (f *FilteredRepository) GetErrorType(id component.Identifier) (*ErrorType, bool) {
	if !f.visible(id) {
		return nil, false
	}
	return f.delegate.GetErrorType(id)
}

// ErrorNamespaces returns the delegate's namespaces that are visible
func (f *FilteredRepository) ErrorNamespaces() []string {
	var out []string
	for _, ns := range f.delegate.ErrorNamespaces() {
		if _, ok := f.namespaces[ns]; ok {
			out = append(out, ns)
		}
	}
	return out
}

// AnyErrorType returns the delegate's ANY
func (f *FilteredRepository) AnyErrorType() *ErrorType { return f.delegate.AnyErrorType() }

// SourceErrorType returns the delegate's SOURCE
func (f *FilteredRepository) SourceErrorType() *ErrorType { return f.delegate.SourceErrorType() }

// SourceResponseErrorType returns the delegate's SOURCE_RESPONSE
func (f *FilteredRepository) SourceResponseErrorType() *ErrorType {
	return f.delegate.SourceResponseErrorType()
}

// UnknownErrorType returns the delegate's UNKNOWN
func (f *FilteredRepository) UnknownErrorType() *ErrorType { return f.delegate.UnknownErrorType() }

// CriticalErrorType returns the delegate's CRITICAL
func (f *FilteredRepository) CriticalErrorType() *ErrorType { return f.delegate.CriticalErrorType() }
