package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mulesoft/mule-sub047/metric"
)

// clientMetrics exports the connection state; both collectors live in the
// shared registry under the natsclient owner.
type clientMetrics struct {
	status     prometheus.Gauge
	reconnects prometheus.Counter
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	m := &clientMetrics{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowfault",
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "NATS connection status (0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 circuit open)",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowfault",
			Subsystem: "nats",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts requested through the client",
		}),
	}

	if err := registry.RegisterGauge("natsclient", "connection_status", m.status); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("natsclient", "reconnect_attempts_total", m.reconnects); err != nil {
		registry.Unregister("natsclient", "connection_status")
		return nil, err
	}
	return m, nil
}

func (m *clientMetrics) setStatus(s ConnectionStatus) {
	m.status.Set(float64(s))
}
