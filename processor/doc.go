// Package processor provides the processors available to error handler
// sub-chains in YAML configuration, and the registry that builds them by name.
//
// Built-ins:
//
//   - log: logs the failed event (params: message, level)
//   - set-variable / remove-variable: edit event variables (params: name, value)
//   - set-payload: replace the payload (params: value)
//   - raise-error: fail with a typed error (params: type, description)
//   - publish: send the failed event as JSON to a NATS subject (params: subject)
package processor
