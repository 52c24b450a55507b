// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxEventSize is the maximum allowed size for a single SSE event (64KB).
const MaxEventSize = 64 * 1024

// ErrStreamingUnsupported is returned when the response writer cannot
// flush, which chunked event streaming requires.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// =============================================================================
// SSE WRITER
// =============================================================================

// Writer emits stream events as Server-Sent Events over an HTTP
// response, flushing after every event so consumers see deltas as they
// are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter wraps a response writer for event streaming. It sets the SSE
// response headers but does not write a status code; the first event
// does. This keeps the pre-stream error path free to send a plain JSON
// error response instead.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes a single event frame and flushes it.
func (w *Writer) WriteEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// WriteDone terminates the stream with the [DONE] sentinel.
func (w *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", DoneMarker); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// =============================================================================
// SSE READER
// =============================================================================

// Reader parses stream events from a Server-Sent Events body.
type Reader struct {
	reader *bufio.Reader
}

// NewReader creates a reader over an SSE response body.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next event from the stream. It returns io.EOF when
// the [DONE] sentinel or the end of the body is reached. Malformed data
// lines are skipped rather than failing the whole stream; a transient
// glitch should not discard the content already received.
func (r *Reader) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		default:
		}

		data, err := r.readData()
		if err != nil {
			return Event{}, err
		}

		if bytes.Equal(data, []byte(DoneMarker)) {
			return Event{}, io.EOF
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		return ev, nil
	}
}

// readData reads lines until it has the data payload of one event.
// A frame whose data exceeds MaxEventSize is dropped whole, the same
// way malformed JSON is: the frames after it still get through.
func (r *Reader) readData() ([]byte, error) {
	var dataLines [][]byte
	oversized := false

	for {
		line, err := r.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 && !oversized {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if oversized {
				oversized = false
				dataLines = dataLines[:0]
				continue
			}
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			if oversized {
				continue
			}
			data := bytes.TrimSpace(line[5:])
			if len(data) > MaxEventSize {
				oversized = true
				dataLines = dataLines[:0]
				continue
			}
			dataLines = append(dataLines, data)
		}
		// Ignore other fields (event:, id:, retry:, comments)
	}
}
