// Package notification fires observability records for error handling:
// handling start and end, security failures and system exceptions.
//
// Dispatch is fire-and-forget. FanOut delivers to a list of sinks (structured
// log, NATS subject with a JSON body, or any SinkFunc) and records the outcome
// in the flowfault_notifications_total counter; a failing sink never changes
// the outcome of the error handling that fired it.
package notification
