package errortype

import (
	"fmt"
	"strings"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
)

// Matcher is a predicate over error types
type Matcher interface {
	Match(candidate *ErrorType) bool
}

// SingleMatcher matches one type and all of its descendants
type SingleMatcher struct {
	Type *ErrorType
}

// NewSingleMatcher creates a matcher for t
func NewSingleMatcher(t *ErrorType) *SingleMatcher {
	return &SingleMatcher{Type: t}
}

// Match reports whether candidate is the type or a descendant of it
func (m *SingleMatcher) Match(candidate *ErrorType) bool {
	return candidate != nil && candidate.IsA(m.Type)
}

func (m *SingleMatcher) String() string {
	return m.Type.String()
}

// DisjunctiveMatcher matches when any of its matchers does
type DisjunctiveMatcher struct {
	matchers []Matcher
}

// NewDisjunctiveMatcher combines matchers with OR semantics. An empty list is a
// configuration error.
func NewDisjunctiveMatcher(matchers ...Matcher) (*DisjunctiveMatcher, error) {
	if len(matchers) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyMatcher, "DisjunctiveMatcher", "New", "build matcher")
	}
	return &DisjunctiveMatcher{matchers: append([]Matcher(nil), matchers...)}, nil
}

// Match reports whether any contained matcher matches
func (m *DisjunctiveMatcher) Match(candidate *ErrorType) bool {
	for _, matcher := range m.matchers {
		if matcher.Match(candidate) {
			return true
		}
	}
	return false
}

// Matchers returns the contained matchers
func (m *DisjunctiveMatcher) Matchers() []Matcher {
	return append([]Matcher(nil), m.matchers...)
}

func (m *DisjunctiveMatcher) String() string {
	parts := make([]string, len(m.matchers))
	for i, matcher := range m.matchers {
		parts[i] = fmt.Sprint(matcher)
	}
	return strings.Join(parts, ", ")
}

// WildcardMatcher matches "*:NAME" (NAME in any namespace, including ancestors
// named NAME) or "NS:*" (any type in namespace NS). Only handleable types
// match: internal types of repo, and anything outside the ANY tree, never do.
type WildcardMatcher struct {
	repo      Repository
	namespace string
	name      string
}

// NewWildcardMatcher parses a wildcard pattern. With a nil repo only the ANY
// tree restricts the matched types.
func NewWildcardMatcher(repo Repository, pattern string) (*WildcardMatcher, error) {
	namespace, name, found := strings.Cut(strings.TrimSpace(pattern), ":")
	if !found || namespace == "" || name == "" || (namespace != "*" && name != "*") {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: wildcard %q", errors.ErrInvalidConfig, pattern), "WildcardMatcher", "New",
			"parse pattern")
	}
	if namespace != "*" {
		namespace = strings.ToUpper(namespace)
	}
	return &WildcardMatcher{repo: repo, namespace: namespace, name: name}, nil
}

// Match implements Matcher
func (m *WildcardMatcher) Match(candidate *ErrorType) bool {
	if !m.handleable(candidate) {
		return false
	}
	switch {
	case m.namespace == "*" && m.name == "*":
		return true
	case m.name == "*":
		return candidate.Namespace() == m.namespace
	default:
		for cur := candidate; cur != nil; cur = cur.Parent() {
			if cur.Identifier() == m.name {
				return true
			}
		}
		return false
	}
}

func (m *WildcardMatcher) handleable(candidate *ErrorType) bool {
	if candidate == nil || candidate.Root() == nil || candidate.Root().Identifier() != Any {
		return false
	}
	if m.repo == nil {
		return true
	}
	t, ok := m.repo.LookupErrorType(candidate.ID())
	return ok && t == candidate
}

func (m *WildcardMatcher) String() string {
	return m.namespace + ":" + m.name
}

// IsAnyMatcher reports whether m matches every handleable type, i.e. is a single
// matcher on ANY or a disjunction containing one.
func IsAnyMatcher(m Matcher) bool {
	switch v := m.(type) {
	case *SingleMatcher:
		return v.Type != nil && v.Type.Parent() == nil && v.Type.Identifier() == Any
	case *DisjunctiveMatcher:
		for _, inner := range v.matchers {
			if IsAnyMatcher(inner) {
				return true
			}
		}
	case *WildcardMatcher:
		return v.namespace == "*" && v.name == "*"
	}
	return false
}

// ParseMatcher compiles a comma separated list of identifiers such as
// "CONNECTIVITY, HTTP:NOT_FOUND, *:TIMEOUT". Identifiers are resolved against
// the handleable types of repo; unknown identifiers fail.
func ParseMatcher(repo Repository, expr string) (Matcher, error) {
	var matchers []Matcher
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if strings.Contains(token, "*") {
			wm, err := NewWildcardMatcher(repo, token)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, wm)
			continue
		}

		id, err := component.ParseIdentifier(token)
		if err != nil {
			return nil, err
		}
		t, ok := repo.LookupErrorType(id)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrUnknownErrorType, id), "Matcher", "Parse", "resolve type")
		}
		matchers = append(matchers, NewSingleMatcher(t))
	}

	if len(matchers) == 1 {
		return matchers[0], nil
	}
	return NewDisjunctiveMatcher(matchers...)
}

// Types returns the types named by single matchers inside m, in order.
func Types(m Matcher) []*ErrorType {
	switch v := m.(type) {
	case *SingleMatcher:
		return []*ErrorType{v.Type}
	case *DisjunctiveMatcher:
		var out []*ErrorType
		for _, inner := range v.matchers {
			out = append(out, Types(inner)...)
		}
		return out
	}
	return nil
}
