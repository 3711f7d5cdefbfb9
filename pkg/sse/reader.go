// Package sse provides a minimal Server-Sent Events reader.
// It reads a stream of SSE lines and emits one frame per data line.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Frame is a single SSE data payload paired with the most recently seen
// "event:" label. Label may be empty when the server sent no event line
// before the data line.
type Frame struct {
	Label string // value of the "event:" field (may be empty)
	Data  string // trimmed value of one "data:" line, never empty
}

// Reader reads SSE frames from an io.Reader.
//
// Unlike the strict SSE dispatch model (accumulate until blank line), Next
// returns a frame for every non-empty data line. The backend emits exactly
// one data line per event, and emitting per line means a frame is never
// delayed behind a missing terminator. The pending event label is consumed
// by the first data line that follows it; a label with no data line before
// EOF is discarded.
//
// Line buffering is byte oriented, so network chunk boundaries (including
// ones that split a multi-byte UTF-8 sequence) cannot affect the parse.
type Reader struct {
	scanner *bufio.Scanner
	label   string // pending "event:" label, cleared on emit
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), 1<<20) // 1 MB line buffer
	return &Reader{scanner: sc}
}

// Next returns the next frame. Returns (Frame{}, io.EOF) at end of stream.
func (r *Reader) Next() (Frame, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			// Blank line separates events; nothing to dispatch because
			// frames are emitted per data line.
			continue

		case strings.HasPrefix(line, "event:"):
			r.label = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			f := Frame{Label: r.label, Data: data}
			r.label = ""
			return f, nil
		}
		// Comments (":"), id: and retry: fields are intentionally ignored.
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
