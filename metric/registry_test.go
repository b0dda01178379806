package metric

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-service", "test_counter", counter))
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"])
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestMetricsRegistry_RegisterGauge(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	require.NoError(t, registry.RegisterGauge("test-service", "test_gauge", gauge))
	gauge.Set(42.0)

	assert.True(t, gatheredNames(t, registry)["test_gauge"])
}

func TestMetricsRegistry_RegisterHistogramVec(t *testing.T) {
	registry := NewMetricsRegistry()

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "A test histogram",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	require.NoError(t, registry.RegisterHistogramVec("test-service", "test_histogram", histogram))
	histogram.WithLabelValues("success").Observe(1.5)

	assert.True(t, gatheredNames(t, registry)["test_histogram"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "first"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "second"})

	require.NoError(t, registry.RegisterCounter("test-service", "duplicate_counter", counter1))

	err := registry.RegisterCounter("test-service", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "already registered")
}

func TestMetricsRegistry_PrometheusConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "shared_name", Help: "first"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "shared_name", Help: "first"})

	require.NoError(t, registry.RegisterCounter("service-a", "shared_name", counter1))

	// Different service key, same Prometheus descriptor
	err := registry.RegisterCounter("service-b", "shared_name", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregister_counter", Help: "test"})
	require.NoError(t, registry.RegisterCounter("test-service", "unregister_counter", counter))
	counter.Inc()

	assert.True(t, registry.Unregister("test-service", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])
	assert.False(t, registry.Unregister("test-service", "unregister_counter"))

	// Re-registration after unregister is allowed
	again := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregister_counter", Help: "test"})
	assert.NoError(t, registry.RegisterCounter("test-service", "unregister_counter", again))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_counter_%d", id)
			counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "concurrent"})
			errs <- registry.RegisterCounter("concurrent-service", name, counter)
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var _ MetricsRegistrar = NewMetricsRegistry()
}

func TestMetricsRegistry_CoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	// Vectors only show up in Gather once a label set exists
	core.RecordResolution("CONTINUE", "APP:CONNECTIVITY", "handled", 10*time.Millisecond)
	core.RecordCritical("MULE:OVERLOAD")
	core.RecordNotification("ERROR_HANDLING_HANDLED", true)
	core.RecordSystemError("APP:CONNECTIVITY")
	core.RecordReconnection("success")
	core.ExecutionErrors.WithLabelValues("orders").Inc()
	core.FatalErrors.WithLabelValues("orders").Inc()

	names := gatheredNames(t, registry)
	for _, name := range []string{
		"flowfault_handler_resolutions_total",
		"flowfault_handler_duration_seconds",
		"flowfault_handler_critical_errors_total",
		"flowfault_notifications_total",
		"flowfault_system_errors_total",
		"flowfault_system_reconnections_total",
		"flowfault_flow_execution_errors_total",
		"flowfault_flow_fatal_errors_total",
		"go_goroutines",
	} {
		assert.True(t, names[name], "expected %s to be gathered", name)
	}
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	core := NewMetrics()

	core.RecordResolution("PROPAGATE", "APP:SECURITY", "propagated", time.Millisecond)
	core.RecordResolution("PROPAGATE", "APP:SECURITY", "propagated", time.Millisecond)
	core.RecordNotification("ERROR_HANDLING_PROPAGATE", false)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(core.ErrorsHandled.WithLabelValues("PROPAGATE", "APP:SECURITY", "propagated")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(core.Notifications.WithLabelValues("ERROR_HANDLING_PROPAGATE", "failed")))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(core.Notifications.WithLabelValues("ERROR_HANDLING_PROPAGATE", "delivered")))
}

func TestFlowStatistics(t *testing.T) {
	core := NewMetrics()
	stats := NewFlowStatistics("orders", core)

	stats.IncExecutionError()
	stats.IncExecutionError()
	stats.IncFatalError()

	assert.Equal(t, "orders", stats.Flow())
	assert.Equal(t, int64(2), stats.ExecutionErrors())
	assert.Equal(t, int64(1), stats.FatalErrors())
	assert.Equal(t, float64(2), testutil.ToFloat64(core.ExecutionErrors.WithLabelValues("orders")))
	assert.Equal(t, float64(1), testutil.ToFloat64(core.FatalErrors.WithLabelValues("orders")))

	// Works without Prometheus backing
	local := NewFlowStatistics("local", nil)
	local.IncFatalError()
	assert.Equal(t, int64(1), local.FatalErrors())
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"orders-flow/errorHandler", "orders_flow_errorHandler"},
		{"already_valid", "already_valid"},
		{"9lives", "_9lives"},
		{"", "unnamed"},
		{"a.b:c", "a_b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordCritical("MULE:CRITICAL")
	server := NewServer("", "", registry)

	assert.Equal(t, "http://:9090/metrics", server.Address())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "flowfault_handler_critical_errors_total"))

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	// Stop before Start is a no-op
	assert.NoError(t, server.Stop())
}

func TestServer_HealthHandler(t *testing.T) {
	server := NewServer("", "", NewMetricsRegistry())
	server.SetHealthHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
