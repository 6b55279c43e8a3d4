package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/resilience"
)

// recordingReporter counts the outcomes observed calls feed back.
type recordingReporter struct {
	successes int
	failures  int
}

func (r *recordingReporter) ReportSuccess()        { r.successes++ }
func (r *recordingReporter) ReportFailure(_ error) { r.failures++ }

func newObservedTestConnector(rep HealthReporter) *Connector {
	return &Connector{
		health: rep,
		retry: resilience.RetryConfig{
			MaxAttempts: 1,
			IsRetryable: resilience.IsNetworkError,
		},
	}
}

func TestObservedReportsSuccess(t *testing.T) {
	rep := &recordingReporter{}
	c := newObservedTestConnector(rep)

	v, err := observed(context.Background(), c, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("observed = (%d, %v), want (42, nil)", v, err)
	}
	if rep.successes != 1 || rep.failures != 0 {
		t.Errorf("reporter = %+v, want one success", rep)
	}
}

func TestObservedReportsNetworkFailure(t *testing.T) {
	rep := &recordingReporter{}
	c := newObservedTestConnector(rep)

	_, err := observed(context.Background(), c, func(context.Context) (int, error) {
		return 0, errors.New("dial tcp: connection refused")
	})
	if err == nil {
		t.Fatal("observed must propagate the error")
	}
	if rep.failures != 1 || rep.successes != 0 {
		t.Errorf("reporter = %+v, want one failure", rep)
	}
}

func TestObservedIgnoresChainSideRejections(t *testing.T) {
	rep := &recordingReporter{}
	c := newObservedTestConnector(rep)

	_, err := observed(context.Background(), c, func(context.Context) (int, error) {
		return 0, errors.New("execution reverted: TransferHelper: TRANSFER_FROM_FAILED")
	})
	if err == nil {
		t.Fatal("observed must propagate the error")
	}
	// A revert indicts the transaction, not the endpoint.
	if rep.failures != 0 || rep.successes != 0 {
		t.Errorf("reporter = %+v, want no reports", rep)
	}
}

func TestObservedRetriesFeedEveryAttempt(t *testing.T) {
	rep := &recordingReporter{}
	c := newObservedTestConnector(rep)
	c.retry.MaxAttempts = 3
	c.retry.BaseDelay = 1
	c.retry.MaxDelay = 1

	calls := 0
	v, err := observed(context.Background(), c, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("i/o timeout")
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("observed = (%q, %v), want (ok, nil)", v, err)
	}
	if rep.failures != 2 || rep.successes != 1 {
		t.Errorf("reporter = %+v, want 2 failures then 1 success", rep)
	}
}
