// Package sse implements the Server-Sent Events framing used by the chat
// stream: each event is one JSON document in a `data:` field terminated by a
// blank line. The decoder reassembles events from arbitrarily split transport
// chunks for client-side consumption.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Writer frames JSON events over an http.ResponseWriter.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates an SSE writer and sets the streaming headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteJSON marshals v and sends it as one event, flushing immediately. A
// multi-line JSON rendering is split across data lines per the SSE format,
// though the compact marshaling used here keeps each event to a single line.
func (w *Writer) WriteJSON(ctx context.Context, v any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for _, line := range strings.Split(string(payload), "\n") {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}

	w.flusher.Flush()
	return nil
}
