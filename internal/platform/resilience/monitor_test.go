package resilience

import "testing"

func TestConnectionMonitorStartsConnected(t *testing.T) {
	m := NewConnectionMonitor(3, nil)
	if !m.Connected() {
		t.Fatal("new monitor must start connected")
	}
	if m.ConsecutiveFailures() != 0 {
		t.Errorf("failures = %d, want 0", m.ConsecutiveFailures())
	}
}

func TestConnectionMonitorDisconnectsAtThreshold(t *testing.T) {
	m := NewConnectionMonitor(3, nil)

	m.RecordFailure()
	m.RecordFailure()
	if !m.Connected() {
		t.Fatal("two failures must not disconnect a threshold-3 monitor")
	}

	m.RecordFailure()
	if m.Connected() {
		t.Fatal("three consecutive failures must disconnect")
	}
	if m.ConsecutiveFailures() != 3 {
		t.Errorf("failures = %d, want 3", m.ConsecutiveFailures())
	}
}

func TestConnectionMonitorSingleSuccessReconnects(t *testing.T) {
	m := NewConnectionMonitor(2, nil)
	m.RecordFailure()
	m.RecordFailure()
	if m.Connected() {
		t.Fatal("monitor should be disconnected")
	}

	m.RecordSuccess()
	if !m.Connected() {
		t.Fatal("one success must restore connectivity")
	}
	if m.ConsecutiveFailures() != 0 {
		t.Errorf("failure run not reset: %d", m.ConsecutiveFailures())
	}
}

func TestConnectionMonitorSuccessBreaksFailureRun(t *testing.T) {
	m := NewConnectionMonitor(3, nil)
	m.RecordFailure()
	m.RecordFailure()
	m.RecordSuccess()
	m.RecordFailure()
	m.RecordFailure()
	if !m.Connected() {
		t.Fatal("interleaved success must reset the run; monitor disconnected too early")
	}
}

func TestConnectionMonitorNotifiesOnTransitionsOnly(t *testing.T) {
	var transitions []bool
	m := NewConnectionMonitor(2, func(connected bool) {
		transitions = append(transitions, connected)
	})

	m.RecordSuccess() // already connected, no event
	m.RecordFailure()
	m.RecordFailure() // disconnects
	m.RecordFailure() // already disconnected, no event
	m.RecordSuccess() // reconnects
	m.RecordSuccess() // already connected, no event

	want := []bool{false, true}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestConnectionMonitorStatsCounters(t *testing.T) {
	m := NewConnectionMonitor(3, nil)

	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordFailure()

	s := m.Stats()
	if s.TotalAttempts != 4 || s.Successful != 3 || s.Failed != 1 {
		t.Errorf("stats = %+v, want 4 attempts, 3 successful, 1 failed", s)
	}
	if s.ConsecutiveFailures != 1 {
		t.Errorf("consecutive failures = %d, want 1", s.ConsecutiveFailures)
	}
	if !s.Connected {
		t.Error("one failure must not flip connectivity")
	}
	if got := s.SuccessRate(); got != 0.75 {
		t.Errorf("success rate = %v, want 0.75", got)
	}

	// A success resets only the run, never the lifetime counters.
	m.RecordSuccess()
	s = m.Stats()
	if s.TotalAttempts != 5 || s.Failed != 1 || s.ConsecutiveFailures != 0 {
		t.Errorf("stats after recovery = %+v, want 5 attempts, 1 failed, run reset", s)
	}
}

func TestConnectionMonitorStatsFreshMonitor(t *testing.T) {
	s := NewConnectionMonitor(3, nil).Stats()
	if s.TotalAttempts != 0 || s.Successful != 0 || s.Failed != 0 {
		t.Errorf("fresh stats = %+v, want all zero", s)
	}
	if got := s.SuccessRate(); got != 1 {
		t.Errorf("success rate with no attempts = %v, want 1", got)
	}
}

func TestConnectionMonitorDefaultThreshold(t *testing.T) {
	m := NewConnectionMonitor(0, nil)
	m.RecordFailure()
	m.RecordFailure()
	if !m.Connected() {
		t.Fatal("default threshold is 3, two failures must not disconnect")
	}
	m.RecordFailure()
	if m.Connected() {
		t.Fatal("default threshold of 3 reached, monitor must disconnect")
	}
}
