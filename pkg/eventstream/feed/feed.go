// Package feed fans tree change events out to in-process subscribers. The API
// server uses it to back the server-sent events change stream.
package feed

import (
	"context"
	"sync"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Feed is an eventstream.Publisher that delivers each event to every current
// subscriber. Delivery never blocks the publisher: a subscriber whose buffer
// is full misses the event.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan *eventstream.TreeChangedEvent
	nextID int
	buffer int
	closed bool

	dropped uint64
}

// New creates a Feed. A buffer below 1 uses DefaultBuffer.
func New(buffer int) *Feed {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Feed{
		subs:   make(map[int]chan *eventstream.TreeChangedEvent),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once. Subscribing to a
// closed feed yields an already closed channel.
func (f *Feed) Subscribe() (<-chan *eventstream.TreeChangedEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *eventstream.TreeChangedEvent, f.buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
}

// PublishTreeChange delivers event to every subscriber with room for it.
func (f *Feed) PublishTreeChange(_ context.Context, event *eventstream.TreeChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilTreeEvent
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
			f.dropped++
		}
	}
	return nil
}

// Subscribers returns the number of registered subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	return nil
}
