package health

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/component"
)

func TestStatus_Predicates(t *testing.T) {
	tests := []struct {
		status                      Status
		healthy, degraded, unhealth bool
	}{
		{NewHealthy("a", ""), true, false, false},
		{NewDegraded("a", ""), false, true, false},
		{NewUnhealthy("a", ""), false, false, true},
		{Status{}, false, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.healthy, tt.status.IsHealthy())
		assert.Equal(t, tt.healthy, tt.status.Healthy)
		assert.Equal(t, tt.degraded, tt.status.IsDegraded())
		assert.Equal(t, tt.unhealth, tt.status.IsUnhealthy())
	}
}

func TestFromLifecycle(t *testing.T) {
	assert.True(t, FromLifecycle("chain", component.StateInitialised).IsHealthy())
	assert.True(t, FromLifecycle("chain", component.StateCreated).IsDegraded())
	assert.True(t, FromLifecycle("chain", component.StateDisposed).IsUnhealthy())
	assert.Equal(t, "failed", FromLifecycle("chain", component.StateFailed).Message)
}

func TestFromError_Sanitizes(t *testing.T) {
	assert.True(t, FromError("nats", nil).IsHealthy())

	s := FromError("nats", stderrors.New("dial nats://user:pw@10.0.0.5:4222 failed, token=abc123"))
	assert.True(t, s.IsUnhealthy())
	assert.NotContains(t, s.Message, "10.0.0.5")
	assert.NotContains(t, s.Message, "abc123")
	assert.Contains(t, s.Message, "[URL]")
	assert.Contains(t, s.Message, "[REDACTED]")

	s = FromError("db", stderrors.New("open /var/lib/flowfault/db.sqlite: permission denied"))
	assert.Equal(t, "open [PATH]: permission denied", s.Message)
}

func TestAggregate(t *testing.T) {
	assert.True(t, Aggregate("sys", nil).IsHealthy())

	healthy := NewHealthy("a", "")
	degraded := NewDegraded("b", "")
	unhealthy := NewUnhealthy("c", "")

	assert.True(t, Aggregate("sys", []Status{healthy, healthy}).IsHealthy())
	assert.True(t, Aggregate("sys", []Status{healthy, degraded}).IsDegraded())

	agg := Aggregate("sys", []Status{degraded, unhealthy})
	assert.True(t, agg.IsUnhealthy())
	assert.Len(t, agg.SubStatuses, 2)
}

func TestMonitor(t *testing.T) {
	m := NewMonitor("flowfault")
	state := component.StateCreated

	m.Update("nats", NewHealthy("", "connected"))
	m.Register("strategy", func() Status { return FromLifecycle("", state) })

	assert.Equal(t, []string{"nats", "strategy"}, m.Components())
	s, ok := m.Get("strategy")
	require.True(t, ok)
	assert.Equal(t, "strategy", s.Component)
	assert.True(t, m.Aggregate().IsDegraded())

	state = component.StateInitialised
	assert.True(t, m.Aggregate().IsHealthy())

	m.Update("nats", NewUnhealthy("", "disconnected"))
	assert.True(t, m.Aggregate().IsUnhealthy())

	m.Remove("nats")
	_, ok = m.Get("nats")
	assert.False(t, ok)
	assert.True(t, m.Aggregate().IsHealthy())
}

func TestMonitor_ServeHTTP(t *testing.T) {
	m := NewMonitor("flowfault")
	m.Update("nats", NewHealthy("", "connected"))

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "flowfault", body.Component)
	assert.True(t, body.Healthy)
	require.Len(t, body.SubStatuses, 1)

	m.Update("nats", NewUnhealthy("", "disconnected"))
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
