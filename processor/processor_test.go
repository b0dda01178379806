package processor

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	messages [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.messages = append(p.messages, data)
	return nil
}

func failedEvent(t *testing.T, repo errortype.Repository) *event.Event {
	t.Helper()
	conn, ok := repo.GetErrorType(component.NewIdentifier("", errortype.Connectivity))
	require.True(t, ok)
	cause := stderrors.New("connection refused")
	return event.New("order-1").
		WithVariable("attempt", 2).
		WithError(event.NewError(conn, cause, component.NewLocation("orders", "processors", "0")))
}

func TestParams(t *testing.T) {
	params := map[string]any{"s": "x", "i": 3, "f": 2.0, "b": true, "d": "250ms", "bad": 1}

	assert.Equal(t, "x", GetString(params, "s", ""))
	assert.Equal(t, "def", GetString(params, "i", "def"))
	assert.Equal(t, 3, GetInt(params, "i", 0))
	assert.Equal(t, 2, GetInt(params, "f", 0))
	assert.True(t, GetBool(params, "b", false))
	assert.True(t, HasKey(params, "bad"))

	d, err := GetDuration(params, "d", 0)
	require.NoError(t, err)
	assert.Equal(t, "250ms", d.String())

	_, err = GetDuration(params, "bad", 0)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = RequireString(params, "missing")
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry(Env{})
	assert.Equal(t, []string{Log, Publish, RaiseError, RemoveVariable, SetPayload, SetVariable}, r.Names())

	_, err := r.Build("nope", nil)
	assert.True(t, errors.IsInvalid(err))

	err = r.Register(Log, newLog)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRegistry_Custom(t *testing.T) {
	r := NewRegistry(Env{})
	require.NoError(t, r.Register("tag", newSetVariable))

	p, err := r.Build("tag", map[string]any{"name": "tagged", "value": true})
	require.NoError(t, err)

	out, err := p.Process(context.Background(), event.New(nil))
	require.NoError(t, err)
	v, ok := out.Variable("tagged")
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestVariablesAndPayload(t *testing.T) {
	r := NewRegistry(Env{})
	ctx := context.Background()

	set, err := r.Build(SetVariable, map[string]any{"name": "handled", "value": "yes"})
	require.NoError(t, err)
	remove, err := r.Build(RemoveVariable, map[string]any{"name": "attempt"})
	require.NoError(t, err)
	payload, err := r.Build(SetPayload, map[string]any{"value": "fallback"})
	require.NoError(t, err)

	evt := event.New("original").WithVariable("attempt", 1)
	for _, p := range []interface {
		Process(context.Context, *event.Event) (*event.Event, error)
	}{set, remove, payload} {
		evt, err = p.Process(ctx, evt)
		require.NoError(t, err)
	}

	assert.Equal(t, "fallback", evt.Payload())
	_, ok := evt.Variable("attempt")
	assert.False(t, ok)
	v, _ := evt.Variable("handled")
	assert.Equal(t, "yes", v)

	_, err = r.Build(SetVariable, map[string]any{})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	_, err = r.Build(SetPayload, nil)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	repo := errortype.NewCoreRepository()
	r := NewRegistry(Env{Repository: repo, Logger: slog.New(slog.NewTextHandler(&buf, nil))})

	p, err := r.Build(Log, map[string]any{"message": "dead letter", "level": "warn"})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), failedEvent(t, repo))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "dead letter")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "CORE:CONNECTIVITY")

	_, err = r.Build(Log, map[string]any{"level": "loud"})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRaiseError(t *testing.T) {
	repo := errortype.NewCoreRepository()
	app, err := repo.AddErrorType(component.NewIdentifier("APP", "REJECTED"), nil)
	require.NoError(t, err)

	r := NewRegistry(Env{Repository: repo})
	p, err := r.Build(RaiseError, map[string]any{"type": "APP:REJECTED", "description": "order rejected"})
	require.NoError(t, err)

	evt := event.New(nil)
	out, err := p.Process(context.Background(), evt)
	require.Error(t, err)
	assert.Same(t, evt, out)
	assert.Equal(t, "APP:REJECTED: order rejected", err.Error())

	var typed *errortype.TypedError
	require.ErrorAs(t, err, &typed)
	assert.Same(t, app, typed.ErrorType())

	_, err = r.Build(RaiseError, map[string]any{"type": "APP:MISSING"})
	assert.ErrorIs(t, err, errors.ErrUnknownErrorType)
	_, err = r.Build(RaiseError, map[string]any{})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestPublish(t *testing.T) {
	repo := errortype.NewCoreRepository()
	pub := &recordingPublisher{}
	r := NewRegistry(Env{Repository: repo, Publisher: pub})

	p, err := r.Build(Publish, map[string]any{"subject": "orders.dlq"})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), failedEvent(t, repo))
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "orders.dlq", pub.subjects[0])

	var msg map[string]any
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	assert.Equal(t, "CORE:CONNECTIVITY", msg["error_type"])
	assert.Equal(t, "connection refused", msg["description"])
	assert.Equal(t, "orders/processors/0", msg["component"])
	assert.Equal(t, "order-1", msg["payload"])

	pub.err = errors.ErrConnectionLost
	_, err = p.Process(context.Background(), failedEvent(t, repo))
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
}

func TestPublish_NeedsPublisher(t *testing.T) {
	r := NewRegistry(Env{})
	_, err := r.Build(Publish, map[string]any{"subject": "orders.dlq"})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	assert.True(t, errors.IsInvalid(err))
}
