// Package notification delivers operator-facing event messages. Delivery
// is best effort: a failed or slow sink never blocks or fails a trade.
package notification

// Level classifies a notification for filtering and display.
type Level string

const (
	LevelCritical Level = "critical"
	LevelWarning  Level = "warning"
	LevelSuccess  Level = "success"
	LevelInfo     Level = "info"
)

// Notifier is the sink strategies and the runner publish events to.
// Notify must not block the caller.
type Notifier interface {
	Notify(level Level, message string)
	// Flush sends anything still queued; used on shutdown.
	Flush()
	Close()
}
