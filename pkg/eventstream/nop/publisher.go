package nop

import (
	"context"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTreeChange validates input and otherwise does nothing.
func (p *Publisher) PublishTreeChange(_ context.Context, event *eventstream.TreeChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilTreeEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
