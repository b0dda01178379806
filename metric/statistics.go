package metric

import "sync/atomic"

// FlowStatistics is the per-flow statistics sink used by error handlers.
// Counts are kept locally and mirrored to Prometheus when core metrics are set.
type FlowStatistics struct {
	flow            string
	core            *Metrics
	executionErrors atomic.Int64
	fatalErrors     atomic.Int64
}

// NewFlowStatistics creates statistics for flow. core may be nil.
func NewFlowStatistics(flow string, core *Metrics) *FlowStatistics {
	return &FlowStatistics{flow: flow, core: core}
}

// IncExecutionError records an error raised while executing the flow.
func (s *FlowStatistics) IncExecutionError() {
	s.executionErrors.Add(1)
	if s.core != nil {
		s.core.ExecutionErrors.WithLabelValues(s.flow).Inc()
	}
}

// IncFatalError records an error the flow's error handler did not handle.
func (s *FlowStatistics) IncFatalError() {
	s.fatalErrors.Add(1)
	if s.core != nil {
		s.core.FatalErrors.WithLabelValues(s.flow).Inc()
	}
}

// ExecutionErrors returns the local execution error count.
func (s *FlowStatistics) ExecutionErrors() int64 {
	return s.executionErrors.Load()
}

// FatalErrors returns the local fatal error count.
func (s *FlowStatistics) FatalErrors() int64 {
	return s.fatalErrors.Load()
}

// Flow returns the flow name the statistics belong to.
func (s *FlowStatistics) Flow() string {
	return s.flow
}
