package component

import "strings"

// Location places a component inside a flow: the flow name plus the processor
// path within it, e.g. {Flow: "orders", Path: "processors/2/errorHandler"}.
type Location struct {
	Flow string
	Path string
}

// NewLocation creates a location for a flow-level element
func NewLocation(flow string, path ...string) Location {
	return Location{Flow: flow, Path: strings.Join(path, "/")}
}

// Child returns the location of a nested element
func (l Location) Child(segment string) Location {
	if l.Path == "" {
		return Location{Flow: l.Flow, Path: segment}
	}
	return Location{Flow: l.Flow, Path: l.Path + "/" + segment}
}

// String returns "flow/path", or just the flow when there is no path
func (l Location) String() string {
	if l.Path == "" {
		return l.Flow
	}
	return l.Flow + "/" + l.Path
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.Flow == "" && l.Path == ""
}
