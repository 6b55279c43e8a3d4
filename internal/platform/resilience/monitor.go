package resilience

import (
	"sync"
)

// ConnectionMonitor tracks RPC connectivity with hysteresis: a single
// transport failure does not flip the status, only a run of consecutive
// failures does, while a single success restores it. This keeps strategy
// loops from thrashing between paused and running on a flaky endpoint.
type ConnectionMonitor struct {
	failureThreshold int

	mu                  sync.Mutex
	consecutiveFailures int
	totalAttempts       int
	successful          int
	failed              int
	connected           bool
	onStateChange       func(connected bool)
}

// MonitorStats is a point-in-time snapshot of monitor counters.
type MonitorStats struct {
	Connected           bool
	TotalAttempts       int
	Successful          int
	Failed              int
	ConsecutiveFailures int
}

// SuccessRate returns the fraction of successful attempts in [0, 1], or 1
// when nothing has been recorded yet.
func (s MonitorStats) SuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 1
	}
	return float64(s.Successful) / float64(s.TotalAttempts)
}

// NewConnectionMonitor creates a monitor that reports disconnected after
// failureThreshold consecutive failures. The monitor starts connected.
func NewConnectionMonitor(failureThreshold int, onStateChange func(connected bool)) *ConnectionMonitor {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &ConnectionMonitor{
		failureThreshold: failureThreshold,
		connected:        true,
		onStateChange:    onStateChange,
	}
}

// RecordSuccess resets the failure run and restores connectivity.
func (m *ConnectionMonitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalAttempts++
	m.successful++
	m.consecutiveFailures = 0
	if !m.connected {
		m.connected = true
		if m.onStateChange != nil {
			m.onStateChange(true)
		}
	}
}

// RecordFailure counts one failure and flips to disconnected once the run
// reaches the threshold.
func (m *ConnectionMonitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalAttempts++
	m.failed++
	m.consecutiveFailures++
	if m.connected && m.consecutiveFailures >= m.failureThreshold {
		m.connected = false
		if m.onStateChange != nil {
			m.onStateChange(false)
		}
	}
}

// Connected reports the current status.
func (m *ConnectionMonitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ConsecutiveFailures returns the current failure run length.
func (m *ConnectionMonitor) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

// Stats returns a snapshot of all counters.
func (m *ConnectionMonitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorStats{
		Connected:           m.connected,
		TotalAttempts:       m.totalAttempts,
		Successful:          m.successful,
		Failed:              m.failed,
		ConsecutiveFailures: m.consecutiveFailures,
	}
}
