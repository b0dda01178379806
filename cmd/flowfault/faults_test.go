package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/system"
)

// downPublisher fails every publish until reconnected
type downPublisher struct {
	mu         sync.Mutex
	up         bool
	reconnects int
}

func (p *downPublisher) Publish(context.Context, string, []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.up {
		return errors.ErrNoConnection
	}
	return nil
}

func (p *downPublisher) Reconnect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconnects++
	p.up = true
	return nil
}

func (p *downPublisher) Reconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconnects
}

func TestPublishFaults_ReconnectThroughStrategy(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &downPublisher{}
	faults := &publishFaults{client: publisher}

	var mu sync.Mutex
	var published []notification.Action
	record := notification.SinkFunc(func(_ context.Context, n notification.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, n.Action)
		return nil
	})
	notifier := notification.NewFanOut([]notification.Sink{
		notification.NewNATSSink(publisher, "", notification.OnPublishFailure(faults.failed)),
		record,
	}, notification.WithLogger(logger))

	strategy := system.New(system.DefaultConfig(), system.Dependencies{Notifier: notifier, Logger: logger})
	require.NoError(t, strategy.Initialise())
	defer strategy.Dispose()

	// failures before the strategy is attached are only logged
	notifier.FireNotification(context.Background(), notification.Notification{Action: notification.ActionHandlingStart})
	assert.Zero(t, publisher.Reconnects())

	faults.attach(strategy)
	notifier.FireNotification(context.Background(), notification.Notification{Action: notification.ActionHandlingEnd})

	assert.Eventually(t, func() bool { return publisher.Reconnects() == 1 }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// one system exception: its own failed publish is not fed back
	assert.Equal(t, []notification.Action{
		notification.ActionHandlingStart,
		notification.ActionSystemException,
		notification.ActionHandlingEnd,
	}, published)
}
