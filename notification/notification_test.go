package notification

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/metric"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func failedException(t *testing.T) *event.MessagingException {
	t.Helper()
	repo := errortype.NewCoreRepository()
	et, ok := repo.GetErrorType(component.NewIdentifier(component.DefaultNamespace, errortype.Connectivity))
	require.True(t, ok)

	loc := component.NewLocation("orders", "processors", "1")
	evt := event.New("payload").WithError(event.NewError(et, errors.ErrConnectionLost, loc))
	return event.NewMessagingException(errors.ErrConnectionLost, evt, event.WithFailingComponent(loc))
}

func TestNew(t *testing.T) {
	ex := failedException(t)

	n := New(ActionHandlingStart, "on-error-continue", nil, ex)
	assert.Equal(t, ActionHandlingStart, n.Action)
	assert.Equal(t, ex.Event().ID(), n.EventID)
	assert.Equal(t, ex.Event().CorrelationID(), n.CorrelationID)
	assert.Equal(t, "CORE:CONNECTIVITY", n.ErrorType)
	assert.Equal(t, "orders/processors/1", n.Component)
	assert.Equal(t, "connection lost", n.Description)
	assert.False(t, n.Handled)
	assert.False(t, n.Timestamp.IsZero())

	ex.MarkHandled()
	assert.True(t, New(ActionHandlingEnd, "h", nil, ex).Handled)
}

func TestNew_WithoutException(t *testing.T) {
	evt := event.New(nil)
	n := New(ActionSystemException, "", evt, nil)
	assert.Equal(t, evt.ID(), n.EventID)
	assert.Empty(t, n.ErrorType)
}

func TestFanOut_DeliversToAllSinks(t *testing.T) {
	var got []Action
	sink := SinkFunc(func(_ context.Context, n Notification) error {
		got = append(got, n.Action)
		return nil
	})

	d := NewFanOut([]Sink{sink, sink})
	d.FireNotification(context.Background(), Notification{Action: ActionSecurity})
	assert.Equal(t, []Action{ActionSecurity, ActionSecurity}, got)
}

func TestFanOut_FailuresAreSwallowed(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	delivered := 0
	sinks := []Sink{
		SinkFunc(func(context.Context, Notification) error { return stderrors.New("broker down") }),
		SinkFunc(func(context.Context, Notification) error { panic("bad sink") }),
		SinkFunc(func(context.Context, Notification) error { delivered++; return nil }),
	}

	d := NewFanOut(sinks, WithMetrics(registry.CoreMetrics()), WithLogger(logger))
	assert.NotPanics(t, func() {
		d.FireNotification(context.Background(), Notification{Action: ActionHandlingEnd})
	})

	assert.Equal(t, 1, delivered)
	assert.Contains(t, buf.String(), "Notification delivery failed")
	assert.Contains(t, buf.String(), "broker down")

	notifications := registry.CoreMetrics().Notifications
	assert.Equal(t, float64(2), testutil.ToFloat64(notifications.WithLabelValues(string(ActionHandlingEnd), "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(notifications.WithLabelValues(string(ActionHandlingEnd), "delivered")))
}

func TestNATSSink(t *testing.T) {
	publisher := &mockPublisher{}
	sink := NewNATSSink(publisher, "")
	n := Notification{Action: ActionHandlingStart, EventID: "evt-1", ErrorType: "CORE:CONNECTIVITY"}

	publisher.On("Publish", mock.Anything, "flowfault.notifications.error_handling_start",
		mock.MatchedBy(func(data []byte) bool {
			var decoded Notification
			return json.Unmarshal(data, &decoded) == nil && decoded.EventID == "evt-1"
		})).Return(nil).Once()

	require.NoError(t, sink.Deliver(context.Background(), n))
	publisher.AssertExpectations(t)
}

func TestNATSSink_PublishFailureIsConnectivity(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, "custom.security_failure", mock.Anything).
		Return(errors.ErrNoConnection)

	sink := NewNATSSink(publisher, "custom")
	err := sink.Deliver(context.Background(), Notification{Action: ActionSecurity})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNoConnection))
	assert.True(t, errors.IsTransient(err))
}

func TestNATSSink_OnPublishFailure(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, "flowfault.notifications.error_handling_end", mock.Anything).
		Return(errors.ErrNoConnection).Once()
	publisher.On("Publish", mock.Anything, "flowfault.notifications.error_handling_start", mock.Anything).
		Return(nil).Once()

	var failed []Action
	var failures []error
	sink := NewNATSSink(publisher, "", OnPublishFailure(func(_ context.Context, n Notification, err error) {
		failed = append(failed, n.Action)
		failures = append(failures, err)
	}))

	require.NoError(t, sink.Deliver(context.Background(), Notification{Action: ActionHandlingStart}))
	err := sink.Deliver(context.Background(), Notification{Action: ActionHandlingEnd})
	require.Error(t, err)

	assert.Equal(t, []Action{ActionHandlingEnd}, failed)
	require.Len(t, failures, 1)
	assert.Equal(t, err, failures[0])
	assert.True(t, stderrors.Is(failures[0], errors.ErrNoConnection))
	publisher.AssertExpectations(t)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)), slog.LevelInfo)

	require.NoError(t, sink.Deliver(context.Background(), Notification{Action: ActionSecurity, Handler: "h1"}))
	assert.Contains(t, buf.String(), `"action":"security_failure"`)
	assert.Contains(t, buf.String(), `"handler":"h1"`)
}

func TestNop(t *testing.T) {
	var d Dispatcher = Nop{}
	assert.NotPanics(t, func() { d.FireNotification(context.Background(), Notification{}) })
}
