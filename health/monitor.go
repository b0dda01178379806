package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check reports the current status of one component when the monitor is read
type Check func() Status

// Monitor tracks health of multiple components in a thread-safe manner.
// Components either push updates or register a Check that is polled.
type Monitor struct {
	name string

	mu       sync.RWMutex
	statuses map[string]Status
	checks   map[string]Check
}

// NewMonitor creates a new health monitor for the system called name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:     name,
		statuses: make(map[string]Status),
		checks:   make(map[string]Check),
	}
}

// Update updates the health status for a named component
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// Register polls check whenever the monitor is read
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Remove removes a component from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.checks, name)
}

// Get retrieves the health status for a named component
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	check, isCheck := m.checks[name]
	status, ok := m.statuses[name]
	m.mu.RUnlock()

	if isCheck {
		s := check()
		s.Component = name
		return s, true
	}
	return status, ok
}

// Components returns the monitored component names, sorted
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.statuses)+len(m.checks))
	for name := range m.statuses {
		names = append(names, name)
	}
	for name := range m.checks {
		if _, ok := m.statuses[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Aggregate returns the aggregated health of every component
func (m *Monitor) Aggregate() Status {
	names := m.Components()
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		if s, ok := m.Get(name); ok {
			subs = append(subs, s)
		}
	}
	return Aggregate(m.name, subs)
}

// ServeHTTP writes the aggregated status as JSON. Unhealthy systems answer
// 503 so that liveness checks fail.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := m.Aggregate()

	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
