// Package worker provides a bounded worker pool and the retry scheduler built on it.
//
// # Overview
//
// Pool[T] runs a fixed number of goroutines that drain a bounded queue. Submit
// never blocks: a full queue returns ErrQueueFull, which the error type locator
// maps to FLOW_BACK_PRESSURE. A panicking work item is recovered and counted as
// a failure (*errors.PanicError), so one bad task cannot kill a worker.
//
// Statistics are always tracked with atomics; Prometheus metrics are opt-in via
// WithMetricsRegistry.
//
// # Scheduler
//
// The system exception strategy runs reconnection attempts off the caller's
// goroutine. It obtains a Scheduler from a SchedulerFactory at initialisation and
// stops it on disposal:
//
//	factory := &worker.PoolSchedulerFactory{Workers: 1, QueueSize: 16}
//	scheduler, err := factory.NewScheduler(ctx, "system.retry")
//	if err != nil {
//	    return err // fatal for the strategy
//	}
//	defer scheduler.Stop(0) // zero timeout: cancel in-flight work, do not wait
//
// # Shutdown
//
// Stop(timeout) closes the queue. With a positive timeout, queued work drains
// until the timeout elapses (ErrStopTimeout). With a zero timeout, the worker
// context is cancelled at once and Stop returns immediately.
package worker
