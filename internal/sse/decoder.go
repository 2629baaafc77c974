package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decoder incrementally reassembles SSE events from a chunked byte stream.
// Feed may be called with chunks split at arbitrary byte boundaries; an event
// is surfaced only once its terminating blank line has been seen. Partial
// events stay buffered.
type Decoder struct {
	buf bytes.Buffer
}

// Feed appends a transport chunk and returns the raw JSON payloads of every
// event completed by it, in order.
func (d *Decoder) Feed(chunk []byte) ([]json.RawMessage, error) {
	d.buf.Write(chunk)

	var events []json.RawMessage
	for {
		raw := d.buf.Bytes()
		idx := bytes.Index(raw, []byte("\n\n"))
		if idx < 0 {
			return events, nil
		}

		frame := make([]byte, idx)
		copy(frame, raw[:idx])
		d.buf.Next(idx + 2)

		payload, err := parseFrame(frame)
		if err != nil {
			return events, err
		}
		if len(payload) > 0 {
			events = append(events, payload)
		}
	}
}

// Pending reports whether a partially received event is buffered.
func (d *Decoder) Pending() bool {
	return bytes.TrimSpace(d.buf.Bytes()) != nil
}

// parseFrame extracts the concatenated data field of one event. Non-data
// lines (comments, ids) are ignored.
func parseFrame(frame []byte) (json.RawMessage, error) {
	var data [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		rest, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		rest = bytes.TrimPrefix(rest, []byte(" "))
		data = append(data, rest)
	}
	if len(data) == 0 {
		return nil, nil
	}

	payload := bytes.Join(data, []byte("\n"))
	if !json.Valid(payload) {
		return nil, fmt.Errorf("malformed event payload: %q", payload)
	}
	return json.RawMessage(payload), nil
}
