package sse

import (
	"bufio"
	"io"
	"strings"
)

// TeeReader parses events from a source while copying every raw line to a
// destination. The destination sees the stream byte for byte, comments and
// keep-alives included.
type TeeReader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	current   *Event
	hasData   bool
	dataLines int
}

// NewTeeReader returns a reader that parses events from src and mirrors the
// raw stream to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TeeReader{
		scanner: scanner,
		dest:    dest,
		current: &Event{},
	}
}

// NewReader returns a reader that only parses events.
func NewReader(src io.Reader) *TeeReader {
	return NewTeeReader(src, io.Discard)
}

// Next blocks until a complete event is available and returns it. It returns
// nil, nil once the source is exhausted. A trailing event without its blank
// line terminator is still returned.
func (r *TeeReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// The scanner strips the newline.
		if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
			return nil, err
		}

		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}
			continue
		}

		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// parseLine accumulates one "field: value" line into the current event. A
// single space after the colon is not part of the value.
func (r *TeeReader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.dataLines > 0 {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataLines++
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// retry and unknown fields are ignored.
	}
}

func (r *TeeReader) reset() {
	r.current = &Event{}
	r.hasData = false
	r.dataLines = 0
}
