// Package retry provides exponential backoff retry logic for reconnection.
//
// # Overview
//
// The system exception strategy uses this package to reconnect connectors that
// failed with a connectivity fault. A policy is a Config; Do runs an operation
// until it succeeds, a NonRetryable error is returned, the attempts run out, or
// the context is cancelled.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//   - Reconnect(): 5 attempts, 500ms-30s delay
//   - ReconnectForever(): unbounded attempts, stopped only by context cancellation
//
// # Usage
//
//	err := retry.Do(ctx, retry.Reconnect(), func() error {
//	    return conn.Reconnect(ctx)
//	})
//	if errors.Is(err, errors.ErrRetryExhausted) {
//	    // give up; the connector stays down
//	}
//
// Exhaustion returns an *ExhaustedError that matches errors.ErrRetryExhausted and
// unwraps to the last attempt's error, so the error type locator classifies it as
// RETRY_EXHAUSTED.
package retry
