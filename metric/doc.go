// Package metric provides Prometheus-based metrics for the error-handling core.
//
// MetricsRegistry wraps a prometheus.Registry with the core metrics (handler
// resolutions, execution and fatal errors per flow, critical errors, notification
// delivery, system errors and reconnections) plus keyed registration for
// component-specific collectors such as the worker pool's.
//
// FlowStatistics is the statistics sink handlers call with IncExecutionError and
// IncFatalError; it keeps local atomic counts and mirrors them to Prometheus.
//
//	registry := metric.NewMetricsRegistry()
//	stats := metric.NewFlowStatistics("orders", registry.CoreMetrics())
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go server.Start(ctx)
package metric
