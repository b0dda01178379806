// Package component holds the small shared vocabulary of the error-handling core:
// namespaced identifiers, the location of a component inside a flow, and the
// Initialise/Dispose lifecycle every handler, chain and strategy follows.
//
// Identifiers print as "NAMESPACE:NAME" and default to the CORE namespace:
//
//	id, _ := component.ParseIdentifier("http:connectivity") // HTTP:connectivity
//	id  = component.MustParseIdentifier("ANY")               // CORE:ANY
//
// Status is embedded by lifecycle components to serialise transitions:
//
//	func (c *Chain) Initialise() error {
//		return c.status.Initialise("Chain", c.initialise)
//	}
package component
