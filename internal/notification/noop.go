package notification

import (
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// NoopNotifier logs notifications instead of delivering them. Use when no
// chat sink is configured (local development, testing).
type NoopNotifier struct {
	logger *observability.Logger
}

// NewNoopNotifier creates a notifier that only logs.
func NewNoopNotifier(logger *observability.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

// Notify logs the message at a level matching its severity.
func (n *NoopNotifier) Notify(level Level, message string) {
	if n.logger == nil {
		return
	}
	switch level {
	case LevelCritical:
		n.logger.Error("notification", "level", string(level), "message", message)
	case LevelWarning:
		n.logger.Warn("notification", "level", string(level), "message", message)
	default:
		n.logger.Info("notification", "level", string(level), "message", message)
	}
}

// Flush is a no-op.
func (n *NoopNotifier) Flush() {}

// Close is a no-op.
func (n *NoopNotifier) Close() {}
