package chainpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

var errConnReset = errors.New("read tcp: connection reset by peer")

// newTestPool builds a pool over fake HTTP endpoints. Dialing is lazy, so
// no server needs to listen; the long TTL keeps background probes out of
// the way.
func newTestPool(t *testing.T, urls ...string) *Pool {
	t.Helper()
	endpoints := make([]EndpointConfig, len(urls))
	for i, u := range urls {
		endpoints[i] = EndpointConfig{URL: u, Weight: 1}
	}
	pool, err := New(PoolConfig{
		Endpoints:      endpoints,
		Logger:         observability.NewNopLogger(),
		HealthCheckTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPoolBindRoundRobin(t *testing.T) {
	pool := newTestPool(t, "http://127.0.0.1:18001", "http://127.0.0.1:18002")
	ctx := context.Background()

	first, err := pool.Bind(ctx)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	second, err := pool.Bind(ctx)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if first.URL == second.URL {
		t.Errorf("consecutive binds hit the same endpoint %s", first.URL)
	}
	if first.Client == nil || second.Client == nil {
		t.Error("bound clients must not be nil")
	}
}

func TestPoolFailuresOpenBreakerAndBindSkipsEndpoint(t *testing.T) {
	pool := newTestPool(t, "http://127.0.0.1:18001", "http://127.0.0.1:18002")
	ctx := context.Background()

	bound, err := pool.Bind(ctx)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	bad := bound.URL

	// Five consecutive failures trip the endpoint's breaker.
	for i := 0; i < 5; i++ {
		bound.ReportFailure(errConnReset)
	}

	for i := 0; i < 6; i++ {
		b, err := pool.Bind(ctx)
		if err != nil {
			t.Fatalf("Bind after breaker opened: %v", err)
		}
		if b.URL == bad {
			t.Fatalf("Bind returned endpoint %s with an open breaker", bad)
		}
	}
}

func TestPoolReportOutcomesFeedMonitor(t *testing.T) {
	pool := newTestPool(t, "http://127.0.0.1:18001")
	ctx := context.Background()

	bound, err := pool.Bind(ctx)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	bound.ReportSuccess()
	bound.ReportSuccess()
	bound.ReportFailure(errConnReset)

	s := pool.Monitor().Stats()
	if s.TotalAttempts != 3 || s.Successful != 2 || s.Failed != 1 {
		t.Errorf("monitor stats = %+v, want 3 attempts, 2 successful, 1 failed", s)
	}
	if !pool.Connected() {
		t.Error("one failure must not flip aggregate connectivity")
	}
}

func TestPoolBindFailsWhenAllBreakersOpen(t *testing.T) {
	pool := newTestPool(t, "http://127.0.0.1:18001")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pool.ReportFailure("http://127.0.0.1:18001", errConnReset)
	}

	if _, err := pool.Bind(ctx); err == nil {
		t.Fatal("Bind must fail when every endpoint's breaker is open")
	}
	if _, err := pool.GetClient(ctx); err == nil {
		t.Fatal("GetClient must fail when every endpoint's breaker is open")
	}
}

func TestPoolStatusReportsEveryEndpoint(t *testing.T) {
	urls := []string{"http://127.0.0.1:18001", "http://127.0.0.1:18002"}
	pool := newTestPool(t, urls...)

	status := pool.Status()
	if len(status) != len(urls) {
		t.Fatalf("status has %d entries, want %d", len(status), len(urls))
	}
	for _, u := range urls {
		healthy, ok := status[u]
		if !ok {
			t.Errorf("status missing endpoint %s", u)
		}
		if !healthy {
			t.Errorf("endpoint %s should start healthy", u)
		}
	}
	if pool.HealthyCount() != len(urls) {
		t.Errorf("HealthyCount = %d, want %d", pool.HealthyCount(), len(urls))
	}
}
