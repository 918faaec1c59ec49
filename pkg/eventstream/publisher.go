package eventstream

import (
	"context"
	"log/slog"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// Publisher publishes tree events to an event stream backend.
type Publisher interface {
	PublishTreeChange(ctx context.Context, event *TreeChangedEvent) error
	Close() error
}

// Hook returns an ntree.ChangeHook that publishes every committed change.
// Publish failures are logged and never reach the mutation caller.
func Hook(pub Publisher, source EventSource, logger *slog.Logger) ntree.ChangeHook {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(ctx context.Context, change ntree.Change) {
		event := NewTreeChangedEvent(source, change)
		if err := pub.PublishTreeChange(ctx, event); err != nil {
			logger.Warn("failed to publish tree change",
				"op", change.Op,
				"event_id", event.EventID,
				"error", err,
			)
		}
	}
}
