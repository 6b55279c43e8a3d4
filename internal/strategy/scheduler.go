package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// stopJoinTimeout bounds how long Stop waits for an in-flight tick.
const stopJoinTimeout = 10 * time.Second

// TickLoop drives a strategy callback on a fixed interval from a dedicated
// goroutine. A panic or error inside one tick is recovered and logged; the
// loop keeps running. The stop signal is observed at the top of each tick.
type TickLoop struct {
	name     string
	interval time.Duration
	onTick   func(ctx context.Context) error
	logger   *observability.Logger
	metrics  *observability.Metrics

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewTickLoop creates a loop that invokes onTick every interval.
func NewTickLoop(name string, interval time.Duration, onTick func(ctx context.Context) error, logger *observability.Logger, metrics *observability.Metrics) *TickLoop {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickLoop{
		name:     name,
		interval: interval,
		onTick:   onTick,
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. Subsequent calls are no-ops.
func (l *TickLoop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

func (l *TickLoop) run(ctx context.Context) {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Re-check after waking: Stop during the tick wait must win over
		// running one more tick.
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		l.tick(ctx)
	}
}

func (l *TickLoop) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick panicked, strategy continues",
				"strategy", l.name,
				"panic", r,
			)
		}
		if l.metrics != nil {
			l.metrics.RecordTick(ctx, l.name, time.Since(start))
		}
	}()

	if err := l.onTick(ctx); err != nil {
		l.logger.LogError(ctx, "tick failed, strategy continues", err,
			"strategy", l.name,
		)
	}
}

// Stop signals the loop and joins it with a bounded wait. An in-flight
// chain call is allowed to finish; a hung tick is abandoned after the
// timeout.
func (l *TickLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })

	select {
	case <-l.doneCh:
	case <-time.After(stopJoinTimeout):
		l.logger.Warn("tick loop did not stop within timeout",
			"strategy", l.name,
		)
	}
}

// Done is closed when the loop goroutine has exited.
func (l *TickLoop) Done() <-chan struct{} { return l.doneCh }
