package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
)

// Event names on the /api/generate stream.
const (
	EventSession  = "session"
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// eventStream writes named JSON events as text/event-stream. The status
// line and headers go out with the first event.
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	buf     bytes.Buffer
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

// send writes one frame and flushes it to the client.
func (s *eventStream) send(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("event %s: marshal: %w", name, err)
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	s.buf.Reset()
	s.buf.WriteString("event: ")
	s.buf.WriteString(name)
	s.buf.WriteString("\ndata: ")
	s.buf.Write(payload)
	s.buf.WriteString("\n\n")
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("event %s: %w", name, err)
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("event %s: flush: %w", name, err)
	}
	return nil
}

// Frame is one event read back from a stream.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Events iterates over the frames in r. Frames without an event field are
// named "message". Data lines within a frame are joined by newlines; comment
// lines and other fields are skipped. Iteration stops at EOF or on the
// first read error, which is yielded with a zero Frame.
func Events(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), 8<<20)

		var (
			name string
			data []byte
		)
		emit := func() bool {
			defer func() { name, data = "", nil }()
			if data == nil {
				return true
			}
			f := Frame{Event: name, Data: json.RawMessage(data)}
			if f.Event == "" {
				f.Event = "message"
			}
			return yield(f, nil)
		}

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				if !emit() {
					return
				}
				continue
			}
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				name = string(value)
			case "data":
				if data != nil {
					data = append(data, '\n')
				}
				data = append(data, value...)
			}
		}
		if err := sc.Err(); err != nil {
			yield(Frame{}, err)
			return
		}
		emit()
	}
}
