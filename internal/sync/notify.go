package sync

import (
	"context"
	"log/slog"
)

// LogNotifier is a [StatusNotifier] that reports cycle outcomes through the
// process log. The default notifier when nothing richer is wired up.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

// CycleResult implements [StatusNotifier].
func (n *LogNotifier) CycleResult(_ context.Context, userID string, processed, failures int) {
	n.log.Info("sync status", "user", userID, "processed", processed, "failures", failures)
}
