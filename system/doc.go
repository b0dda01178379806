// Package system handles faults raised outside any flow, e.g. a connector
// whose connection drops while no message is in flight.
//
// The Strategy notifies, logs, rolls back the transaction bound to the
// context and, for CONNECTIVITY faults, reconnects the failed resource on a
// dedicated scheduler with exponential backoff:
//
//	strategy := system.New(system.DefaultConfig(), system.Dependencies{
//		Schedulers: &worker.PoolSchedulerFactory{Workers: 1},
//	})
//	if err := strategy.Initialise(); err != nil { ... }
//	defer strategy.Dispose()
//
//	strategy.HandleException(ctx, system.WithReconnect(err, client), nil)
package system
