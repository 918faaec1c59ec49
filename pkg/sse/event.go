// Package sse reads and writes the Server-Sent Events framing used by the
// ntree change feed. The API server encodes each committed tree change as one
// event and the watch command decodes them, optionally mirroring the raw
// stream to another writer.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"fmt"
	"io"
	"strings"
)

// Event is a single SSE event, delimited by a blank line on the wire.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field.
	ID string
}

// Encode writes ev to w in SSE framing, terminated by a blank line.
// Multi-line data is split over several "data:" fields.
func Encode(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Comment writes an SSE comment line. Readers skip comments, so they serve
// as keep-alives.
func Comment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
