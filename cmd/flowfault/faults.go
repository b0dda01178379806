package main

import (
	"context"
	"sync/atomic"

	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/system"
)

// publishFaults hands failed notification publishes to the system strategy,
// which reconnects the client with backoff. The sink exists before the
// strategy, so the strategy is attached once it is initialised.
type publishFaults struct {
	client   system.Reconnectable
	strategy atomic.Pointer[system.Strategy]
}

func (f *publishFaults) attach(s *system.Strategy) {
	f.strategy.Store(s)
}

func (f *publishFaults) failed(_ context.Context, n notification.Notification, err error) {
	strategy := f.strategy.Load()
	// the strategy's own notification goes through the same sink
	if strategy == nil || n.Action == notification.ActionSystemException {
		return
	}
	// the fault belongs to the connection, not to the event or transaction
	// of the flow whose notification failed
	strategy.HandleException(context.Background(), system.WithReconnect(err, f.client), nil)
}
