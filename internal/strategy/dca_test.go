package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestDCA(t *testing.T, conn *fakeConn, cfg DCAConfig) *DCA {
	t.Helper()
	s, err := NewDCA(cfg, time.Second, []WalletConnector{{Name: "w1", Conn: conn}}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDCA failed: %v", err)
	}
	instantManagers(s.managers)
	return s
}

func defaultDCAConfig() DCAConfig {
	return DCAConfig{
		BaseSymbol:   "CAKE",
		QuoteSymbol:  "USDT",
		TotalAmount:  dec("30"),
		BasisIsBase:  true,
		SpendIsBase:  true,
		NumOrders:    3,
		Distribution: "uniform",
		SlippageBps:  50,
		MaxRetries:   1,
	}
}

func TestDCARejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DCAConfig)
	}{
		{"zero total", func(c *DCAConfig) { c.TotalAmount = decimal.Zero }},
		{"negative total", func(c *DCAConfig) { c.TotalAmount = dec("-1") }},
		{"zero orders", func(c *DCAConfig) { c.NumOrders = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultDCAConfig()
			tc.mutate(&cfg)
			if _, err := NewDCA(cfg, time.Second, []WalletConnector{{Name: "w1", Conn: newFakeConn("2")}}, testLogger(), nil); err == nil {
				t.Error("expected config error, got nil")
			}
		})
	}

	t.Run("no wallets", func(t *testing.T) {
		if _, err := NewDCA(defaultDCAConfig(), time.Second, nil, testLogger(), nil); err == nil {
			t.Error("expected config error, got nil")
		}
	})
}

func TestDCAPickChunkUniform(t *testing.T) {
	s := newTestDCA(t, newFakeConn("2"), defaultDCAConfig())

	if got := s.pickChunk(); !got.Equal(dec("10")) {
		t.Errorf("chunk = %s, want 10", got)
	}

	s.remaining = dec("7")
	s.ordersLeft = 1
	if got := s.pickChunk(); !got.Equal(dec("7")) {
		t.Errorf("last chunk = %s, want everything left (7)", got)
	}
}

func TestDCAPickChunkRandomUniform(t *testing.T) {
	cfg := defaultDCAConfig()
	cfg.Distribution = "random_uniform"
	s := newTestDCA(t, newFakeConn("2"), cfg)

	// Mean chunk is 10; the draw scales it into [0.5, 1.5] x mean.
	s.randFloat = func() float64 { return 0 }
	if got := s.pickChunk(); !got.Equal(dec("5")) {
		t.Errorf("low draw chunk = %s, want 5", got)
	}

	s.randFloat = func() float64 { return 1 }
	if got := s.pickChunk(); !got.Equal(dec("15")) {
		t.Errorf("high draw chunk = %s, want 15", got)
	}

	// A draw that would overshoot the pool is clamped.
	s.remaining = dec("12")
	s.ordersLeft = 3
	s.randFloat = func() float64 { return 1 }
	got := s.pickChunk()
	if got.GreaterThan(s.remaining) {
		t.Errorf("chunk %s exceeds remaining %s", got, s.remaining)
	}
}

func TestDCAExecutesOneChunkPerTick(t *testing.T) {
	conn := newFakeConn("2")
	s := newTestDCA(t, conn, defaultDCAConfig())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := s.onTick(ctx); err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
		completed, attempted, _ := s.Progress()
		if completed != i || attempted != i {
			t.Fatalf("after tick %d: completed=%d attempted=%d, want %d/%d", i, completed, attempted, i, i)
		}
	}

	_, _, remaining := s.Progress()
	if remaining.Sign() != 0 {
		t.Errorf("remaining = %s after all orders, want 0", remaining)
	}
	if got := conn.callCount(); got != 3 {
		t.Fatalf("swaps = %d, want 3", got)
	}
	for i, call := range conn.calls() {
		if call.amount.Sub(dec("10")).Abs().GreaterThan(dec("0.000001")) {
			t.Errorf("swap[%d] amount = %s, want ~10", i, call.amount)
		}
		if !call.spendIsBase {
			t.Errorf("swap[%d] must spend base", i)
		}
	}

	// The completed allocation only asks the loop to stop.
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("post-completion tick failed: %v", err)
	}
	if got := conn.callCount(); got != 3 {
		t.Errorf("completed dca traded again: %d swaps", got)
	}
}

func TestDCAConvertsBasisToSpendSide(t *testing.T) {
	// Accumulating 30 CAKE with USDT at price 2: each chunk of 10 base
	// costs 20 quote.
	conn := newFakeConn("2")
	cfg := defaultDCAConfig()
	cfg.SpendIsBase = false
	s := newTestDCA(t, conn, cfg)

	if err := s.onTick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := conn.callCount(); got != 1 {
		t.Fatalf("swaps = %d, want 1", got)
	}
	call := conn.calls()[0]
	if call.spendIsBase {
		t.Error("buy side must spend quote")
	}
	if call.amount.Sub(dec("20")).Abs().GreaterThan(dec("0.000001")) {
		t.Errorf("spend = %s, want ~20 quote", call.amount)
	}

	// The pool is tracked in the basis denomination, not the spend one.
	_, _, remaining := s.Progress()
	if remaining.Sub(dec("20")).Abs().GreaterThan(dec("0.000001")) {
		t.Errorf("remaining = %s, want ~20 base", remaining)
	}
}

func TestDCAFailureLeavesAllocationUntouched(t *testing.T) {
	conn := newFakeConn("2")
	conn.swapErr = errors.New("execution reverted")
	s := newTestDCA(t, conn, defaultDCAConfig())
	ctx := context.Background()

	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	completed, attempted, remaining := s.Progress()
	if completed != 0 || attempted != 1 {
		t.Errorf("completed=%d attempted=%d, want 0/1", completed, attempted)
	}
	if !remaining.Equal(dec("30")) {
		t.Errorf("remaining = %s after failure, want 30", remaining)
	}
	if s.ordersLeft != 3 {
		t.Errorf("ordersLeft = %d after failure, want 3", s.ordersLeft)
	}

	// Once the revert clears, the same chunk trades on the next tick.
	conn.mu.Lock()
	conn.swapErr = nil
	conn.mu.Unlock()
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("retry tick failed: %v", err)
	}
	completed, attempted, _ = s.Progress()
	if completed != 1 || attempted != 2 {
		t.Errorf("completed=%d attempted=%d after recovery, want 1/2", completed, attempted)
	}
}

func TestDCAAttemptCapStopsPersistentFailure(t *testing.T) {
	conn := newFakeConn("2")
	conn.swapErr = errors.New("execution reverted")
	cfg := defaultDCAConfig()
	cfg.NumOrders = 2
	s := newTestDCA(t, conn, cfg)
	ctx := context.Background()

	maxAttempts := cfg.NumOrders * attemptCapFactor
	for i := 0; i < maxAttempts; i++ {
		if err := s.onTick(ctx); err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
	}
	_, attempted, _ := s.Progress()
	if attempted != maxAttempts {
		t.Fatalf("attempted = %d, want %d", attempted, maxAttempts)
	}

	// Past the cap the strategy stops instead of attempting again.
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("capped tick failed: %v", err)
	}
	_, attempted, _ = s.Progress()
	if attempted != maxAttempts {
		t.Errorf("attempted = %d past the cap, want %d", attempted, maxAttempts)
	}
}

func TestDCASkipsTickWithoutPrice(t *testing.T) {
	conn := newFakeConn("2")
	conn.priceErr = errors.New("connection refused")
	s := newTestDCA(t, conn, defaultDCAConfig())

	if err := s.onTick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	completed, attempted, remaining := s.Progress()
	if completed != 0 || attempted != 0 || !remaining.Equal(dec("30")) {
		t.Errorf("tick without a price moved counters: completed=%d attempted=%d remaining=%s",
			completed, attempted, remaining)
	}
	if conn.callCount() != 0 {
		t.Error("no swap may run without a price")
	}
}
