package strategy

import (
	"context"
	"testing"
	"time"
)

func newTestMarketMaking(t *testing.T, conn *fakeConn, upperPct, lowerPct string, levels int) *MarketMaking {
	t.Helper()
	s, err := NewMarketMaking(MarketMakingConfig{
		BaseSymbol:     "CAKE",
		QuoteSymbol:    "USDT",
		UpperPercent:   dec(upperPct),
		LowerPercent:   dec(lowerPct),
		LevelsEachSide: levels,
		OrderAmount:    dec("1"),
		RefreshEvery:   time.Hour,
		SlippageBps:    50,
		MaxRetries:     1,
	}, time.Second, []WalletConnector{{Name: "w1", Conn: conn}}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewMarketMaking failed: %v", err)
	}
	instantManagers(s.managers)
	return s
}

func TestMarketMakingRebuildLevels(t *testing.T) {
	s := newTestMarketMaking(t, newFakeConn("100"), "1", "1", 3)
	s.rebuildLevels(dec("100"))

	wantUpper := []string{"101", "102", "103"}
	wantLower := []string{"99", "98", "97"}
	for i := range wantUpper {
		if !s.upperLevels[i].Equal(dec(wantUpper[i])) {
			t.Errorf("upper[%d] = %s, want %s", i, s.upperLevels[i], wantUpper[i])
		}
		if !s.lowerLevels[i].Equal(dec(wantLower[i])) {
			t.Errorf("lower[%d] = %s, want %s", i, s.lowerLevels[i], wantLower[i])
		}
	}
}

func TestMarketMakingClampsLowerLevels(t *testing.T) {
	// 60% spacing over 3 levels would reach -80% of mid; every level below
	// the floor is pinned to 1% of mid instead of going non-positive.
	s := newTestMarketMaking(t, newFakeConn("100"), "1", "60", 3)
	s.rebuildLevels(dec("100"))

	floor := dec("1")
	for i, lvl := range s.lowerLevels {
		if lvl.Sign() <= 0 {
			t.Fatalf("lower[%d] = %s, must stay positive", i, lvl)
		}
		if lvl.LessThan(floor) {
			t.Errorf("lower[%d] = %s, below the 1%% floor", i, lvl)
		}
	}
	if !s.lowerLevels[1].Equal(floor) || !s.lowerLevels[2].Equal(floor) {
		t.Errorf("deep levels = %s/%s, want clamped to %s", s.lowerLevels[1], s.lowerLevels[2], floor)
	}
}

func TestMarketMakingExecutesLevelAtMostOncePerCycle(t *testing.T) {
	conn := newFakeConn("100")
	s := newTestMarketMaking(t, conn, "1", "1", 2)
	ctx := context.Background()

	// First tick builds the grid at mid 100; nothing crossed yet.
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if conn.callCount() != 0 {
		t.Fatalf("no level should fire at the mid, got %d swaps", conn.callCount())
	}

	// Price rises over the first upper level: one sell fires.
	conn.setPrice("101.5")
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := conn.callCount(); got != 1 {
		t.Fatalf("swaps = %d, want 1", got)
	}
	if call := conn.calls()[0]; !call.spendIsBase {
		t.Error("upper-level cross must sell base")
	}

	// Same price on the next tick: the level is already executed.
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := conn.callCount(); got != 1 {
		t.Errorf("executed level fired again: %d swaps", got)
	}
}

func TestMarketMakingRefreshClearsExecutedLevels(t *testing.T) {
	conn := newFakeConn("101.5")
	s := newTestMarketMaking(t, conn, "1", "1", 1)
	ctx := context.Background()

	s.rebuildLevels(dec("100"))
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if conn.callCount() != 1 {
		t.Fatalf("swaps = %d, want 1", conn.callCount())
	}

	// Force the refresh timer: the grid rebuilds around the new mid and the
	// executed set resets.
	s.lastRefresh = time.Now().Add(-2 * time.Hour)
	conn.setPrice("104")
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if len(s.executedLevels) != 0 {
		// The rebuilt grid centers on 104, so 104 crosses nothing yet.
		t.Errorf("executed set not cleared on refresh: %v", s.executedLevels)
	}

	conn.setPrice("105.1")
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := conn.callCount(); got != 2 {
		t.Errorf("swaps after refresh = %d, want 2", got)
	}
}

func TestMarketMakingBuysBelowLowerLevel(t *testing.T) {
	conn := newFakeConn("100")
	s := newTestMarketMaking(t, conn, "1", "1", 1)
	ctx := context.Background()

	s.rebuildLevels(dec("100"))
	conn.setPrice("98.5")
	if err := s.onTick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := conn.callCount(); got != 1 {
		t.Fatalf("swaps = %d, want 1", got)
	}
	if call := conn.calls()[0]; call.spendIsBase {
		t.Error("lower-level cross must spend quote")
	}
}
