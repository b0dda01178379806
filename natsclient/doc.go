// Package natsclient owns the NATS connection used to publish error-handling
// notifications.
//
// Connection attempts pass through a circuit breaker. After the configured
// number of consecutive failures (default 5) Connect fails fast with
// ErrCircuitOpen until the backoff elapses; each further round of failures
// doubles the backoff, up to one minute by default.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithCircuitBreaker(3, 30*time.Second),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    logger.Warn("NATS unavailable", "error", err)
//	}
//	defer client.Close(ctx)
//
// ErrNotConnected and ErrCircuitOpen wrap errors.ErrNoConnection, so a failed
// publish is typed CONNECTIVITY. Handing it to the system strategy with
// system.WithReconnect(err, client) makes the strategy call Reconnect with
// backoff until the connection is back.
package natsclient
