// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	events := []Event{
		TextDelta("Hello"),
		ReasoningDelta("hmm"),
		TextDelta(" world"),
		Finish(FinishStop),
	}
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := w.WriteDone(); err != nil {
		t.Fatalf("WriteDone: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := NewReader(rec.Body)
	ctx := context.Background()
	var got []Event
	for {
		ev, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, ev)
	}

	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i, ev := range got {
		if ev != events[i] {
			t.Errorf("event %d = %+v, want %+v", i, ev, events[i])
		}
	}
}

func TestReaderSkipsMalformedData(t *testing.T) {
	body := strings.Join([]string{
		`data: {"type":"text-delta","content":"ok"}`,
		"",
		`data: {not json`,
		"",
		`data: {"type":"finish","reason":"stop"}`,
		"",
		"data: [DONE]",
		"",
	}, "\n")

	r := NewReader(strings.NewReader(body))
	ctx := context.Background()

	ev, err := r.Next(ctx)
	if err != nil || ev.Content != "ok" {
		t.Fatalf("first event = %+v, %v", ev, err)
	}
	ev, err = r.Next(ctx)
	if err != nil || ev.Type != EventFinish {
		t.Fatalf("second event = %+v, %v", ev, err)
	}
	if _, err = r.Next(ctx); err != io.EOF {
		t.Errorf("after [DONE]: err = %v, want io.EOF", err)
	}
}

func TestReaderIgnoresCommentsAndFields(t *testing.T) {
	body := ": keepalive\nid: 7\nevent: message\ndata: {\"type\":\"text-delta\",\"content\":\"x\"}\n\ndata: [DONE]\n\n"

	r := NewReader(strings.NewReader(body))
	ev, err := r.Next(context.Background())
	if err != nil || ev.Content != "x" {
		t.Fatalf("event = %+v, %v", ev, err)
	}
}

func TestReaderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(strings.NewReader("data: {}\n\n"))
	if _, err := r.Next(ctx); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReaderBareEOF(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Next(context.Background()); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestReaderSkipsOversizedFrame(t *testing.T) {
	huge := `data: {"type":"text-delta","content":"` + strings.Repeat("A", MaxEventSize+1) + `"}`
	body := strings.Join([]string{
		`data: {"type":"text-delta","content":"before"}`,
		"",
		huge,
		"",
		`data: {"type":"text-delta","content":"after"}`,
		"",
		`data: {"type":"finish","reason":"stop"}`,
		"",
		"data: [DONE]",
		"",
	}, "\n")

	r := NewReader(strings.NewReader(body))
	ctx := context.Background()

	ev, err := r.Next(ctx)
	if err != nil || ev.Content != "before" {
		t.Fatalf("first event = %+v, %v", ev, err)
	}
	ev, err = r.Next(ctx)
	if err != nil || ev.Content != "after" {
		t.Fatalf("event after oversized frame = %+v, %v", ev, err)
	}
	ev, err = r.Next(ctx)
	if err != nil || ev.Type != EventFinish {
		t.Fatalf("finish event = %+v, %v", ev, err)
	}
	if _, err = r.Next(ctx); err != io.EOF {
		t.Errorf("after [DONE]: err = %v, want io.EOF", err)
	}
}

func TestReaderOversizedFrameAtEOF(t *testing.T) {
	huge := `data: ` + strings.Repeat("A", MaxEventSize+1)
	r := NewReader(strings.NewReader(huge + "\n"))
	if _, err := r.Next(context.Background()); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
