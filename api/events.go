package api

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
	"github.com/cienislaw/thirtybees/pkg/sse"
)

// defaultHeartbeat is used when Config.Heartbeat is unset.
const defaultHeartbeat = 15 * time.Second

// EventSource hands out subscriptions to committed tree changes.
type EventSource interface {
	Subscribe() (<-chan *eventstream.TreeChangedEvent, func())
}

// handleEvents streams committed tree changes as server-sent events until the
// client goes away or the server shuts down. The optional "op" query
// parameter is a comma separated list of operations to keep.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	ops := make(map[string]bool)
	for _, op := range strings.Split(c.Query("op"), ",") {
		if op = strings.TrimSpace(op); op != "" {
			ops[op] = true
		}
	}

	events, cancel := s.config.Events.Subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// pw.Write blocks until fasthttp has flushed the previous chunk, so each
	// event reaches the client as soon as it is written.
	pr, pw := io.Pipe()
	go s.streamEvents(pw, events, cancel, ops)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) streamEvents(pw *io.PipeWriter, events <-chan *eventstream.TreeChangedEvent, cancel func(), ops map[string]bool) {
	defer cancel()
	defer pw.Close()

	heartbeat := s.config.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	// Headers are only sent with the first chunk.
	if err := sse.Comment(pw, "connected"); err != nil {
		return
	}

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := sse.Comment(pw, "ping"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if len(ops) > 0 && !ops[ev.Change.Op] {
				continue
			}

			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode tree change", "event_id", ev.EventID, "error", err)
				continue
			}
			if err := sse.Encode(pw, sse.Event{ID: ev.EventID, Type: ev.EventType, Data: string(data)}); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
