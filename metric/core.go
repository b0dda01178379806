package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowfault"

// Metrics contains the error-handling core metrics
type Metrics struct {
	ErrorsHandled      *prometheus.CounterVec
	ExecutionErrors    *prometheus.CounterVec
	FatalErrors        *prometheus.CounterVec
	CriticalErrors     *prometheus.CounterVec
	HandlingDuration   *prometheus.HistogramVec
	Notifications      *prometheus.CounterVec
	SystemErrors       *prometheus.CounterVec
	ReconnectionsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handler",
				Name:      "resolutions_total",
				Help:      "Error resolutions by handler kind, error type and outcome (handled, propagated, failed)",
			},
			[]string{"kind", "error_type", "outcome"},
		),

		ExecutionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "execution_errors_total",
				Help:      "Errors raised while executing a flow",
			},
			[]string{"flow"},
		),

		FatalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "fatal_errors_total",
				Help:      "Errors that were not handled by the flow's error handler",
			},
			[]string{"flow"},
		),

		CriticalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handler",
				Name:      "critical_errors_total",
				Help:      "Critical errors seen by the critical error handler",
			},
			[]string{"error_type"},
		),

		HandlingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "handler",
				Name:      "duration_seconds",
				Help:      "Time from handler acceptance to resolution",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "total",
				Help:      "Notifications fired by action and delivery status",
			},
			[]string{"action", "status"},
		),

		SystemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "system",
				Name:      "errors_total",
				Help:      "Errors handled outside any message context",
			},
			[]string{"error_type"},
		),

		ReconnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "system",
				Name:      "reconnections_total",
				Help:      "Reconnection attempts triggered by connectivity errors",
			},
			[]string{"status"},
		),
	}
}

func (c *Metrics) register(registry *prometheus.Registry) {
	registry.MustRegister(
		c.ErrorsHandled,
		c.ExecutionErrors,
		c.FatalErrors,
		c.CriticalErrors,
		c.HandlingDuration,
		c.Notifications,
		c.SystemErrors,
		c.ReconnectionsTotal,
	)
}

// RecordResolution counts one handler resolution
func (c *Metrics) RecordResolution(kind, errorType, outcome string, duration time.Duration) {
	c.ErrorsHandled.WithLabelValues(kind, errorType, outcome).Inc()
	c.HandlingDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCritical counts a critical error
func (c *Metrics) RecordCritical(errorType string) {
	c.CriticalErrors.WithLabelValues(errorType).Inc()
}

// RecordNotification counts a notification delivery attempt
func (c *Metrics) RecordNotification(action string, delivered bool) {
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	c.Notifications.WithLabelValues(action, status).Inc()
}

// RecordSystemError counts an error handled by the system strategy
func (c *Metrics) RecordSystemError(errorType string) {
	c.SystemErrors.WithLabelValues(errorType).Inc()
}

// RecordReconnection counts a reconnection outcome ("success", "exhausted", "cancelled")
func (c *Metrics) RecordReconnection(status string) {
	c.ReconnectionsTotal.WithLabelValues(status).Inc()
}
