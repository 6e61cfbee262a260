package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var errStreamingUnsupported = errors.New("response writer cannot flush")

// eventWriter writes server-sent events and flushes after each one.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventWriter{w: w, flusher: flusher}, nil
}

// Send writes one event. An empty name sends an unnamed message event.
// Multi-line data is split across data fields.
func (e *eventWriter) Send(name, data string) error {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "event: %s\n", name)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := e.w.Write([]byte(b.String())); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// SendJSON writes v as the data of one event.
func (e *eventWriter) SendJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.Send(name, string(data))
}
