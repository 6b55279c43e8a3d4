package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickLoopRunsUntilStopped(t *testing.T) {
	var ticks atomic.Int64
	loop := NewTickLoop("test", 5*time.Millisecond, func(context.Context) error {
		ticks.Add(1)
		return nil
	}, testLogger(), nil)

	loop.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}

	loop.Stop()
	select {
	case <-loop.Done():
	default:
		t.Fatal("Done must be closed after Stop returns")
	}

	at := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if got := ticks.Load(); got != at {
		t.Errorf("loop ticked after Stop: %d -> %d", at, got)
	}
}

func TestTickLoopSurvivesPanicAndError(t *testing.T) {
	var ticks atomic.Int64
	loop := NewTickLoop("test", 5*time.Millisecond, func(context.Context) error {
		n := ticks.Add(1)
		switch n {
		case 1:
			panic("tick exploded")
		case 2:
			return errors.New("tick failed")
		}
		return nil
	}, testLogger(), nil)

	loop.Start(context.Background())
	defer loop.Stop()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("loop stopped after %d ticks, must survive panic and error", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestTickLoopExitsOnContextCancel(t *testing.T) {
	loop := NewTickLoop("test", 5*time.Millisecond, func(context.Context) error {
		return nil
	}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}

func TestTickLoopStartIsIdempotent(t *testing.T) {
	var ticks atomic.Int64
	loop := NewTickLoop("test", 10*time.Millisecond, func(context.Context) error {
		ticks.Add(1)
		return nil
	}, testLogger(), nil)

	ctx := context.Background()
	loop.Start(ctx)
	loop.Start(ctx)

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}
	loop.Stop()

	// A doubled Start would have produced a second goroutine still ticking.
	at := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != at {
		t.Errorf("ticks continued after Stop: %d -> %d", at, got)
	}
}
