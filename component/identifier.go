package component

import (
	"fmt"
	"strings"

	"github.com/mulesoft/mule-sub047/errors"
)

// DefaultNamespace is used for identifiers given without a namespace prefix
const DefaultNamespace = "CORE"

// Identifier names a namespaced element, such as an error type or a component kind.
// The namespace is always upper case.
type Identifier struct {
	Namespace string
	Name      string
}

// NewIdentifier builds an identifier, defaulting an empty namespace to DefaultNamespace
func NewIdentifier(namespace, name string) Identifier {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Identifier{Namespace: strings.ToUpper(namespace), Name: name}
}

// ParseIdentifier parses "NAMESPACE:NAME" or "NAME".
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, errors.WrapInvalid(errors.ErrInvalidConfig, "Identifier", "Parse", "parse empty identifier")
	}

	namespace, name, found := strings.Cut(s, ":")
	if !found {
		return NewIdentifier("", namespace), nil
	}
	namespace, name = strings.TrimSpace(namespace), strings.TrimSpace(name)
	if namespace == "" || name == "" || strings.Contains(name, ":") {
		return Identifier{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidConfig, s), "Identifier", "Parse", "parse identifier")
	}
	return NewIdentifier(namespace, name), nil
}

// MustParseIdentifier is ParseIdentifier for literals known to be valid
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns "NAMESPACE:NAME"
func (i Identifier) String() string {
	return i.Namespace + ":" + i.Name
}

// IsZero reports whether the identifier is unset
func (i Identifier) IsZero() bool {
	return i.Namespace == "" && i.Name == ""
}
