// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/server"
	"github.com/jeranaias/streamchat/internal/stream"
)

// sseHandler serves a fixed sequence of events as one chat response.
func sseHandler(events ...stream.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprintf(w, "data: %s\n\n", stream.DoneMarker)
	}
}

// newConsumer wires a Consumer against the handler, returning it along
// with a channel that receives the OnFinish error.
func newConsumer(t *testing.T, handler http.Handler, hooks Hooks) (*Consumer, chan error) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	done := make(chan error, 1)
	hooks.OnFinish = func(final *model.Conversation, err error) { done <- err }

	c := New(Config{Endpoint: srv.URL + "/api/chat"}, hooks)
	t.Cleanup(c.Close)
	return c, done
}

func waitFinish(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish in time")
		return nil
	}
}

func TestSendStreamsContentIntoOpenMessage(t *testing.T) {
	handler := sseHandler(
		stream.TextDelta("Hello"),
		stream.TextDelta(" world"),
		stream.Finish(stream.FinishStop),
	)

	conv := model.NewConversation()
	var snapshots []string
	hooks := Hooks{
		OnUpdate: func(snapshot *model.Conversation) {
			if msg := snapshot.LastMessage(); msg != nil && msg.Role == model.RoleAssistant {
				snapshots = append(snapshots, msg.Content)
			}
		},
	}

	c, done := newConsumer(t, handler, hooks)
	if err := c.Send(conv, "hi", false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("finish error: %v", err)
	}

	if conv.MessageCount() != 2 {
		t.Fatalf("got %d messages, want 2", conv.MessageCount())
	}
	reply := conv.LastMessage()
	if reply.Role != model.RoleAssistant || reply.Content != "Hello world" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Open {
		t.Error("reply still open after stream end")
	}
	if reply.Truncated {
		t.Error("reply marked truncated on clean stop")
	}

	// Each rendered state is a prefix of the next; content only grows.
	for i := 1; i < len(snapshots); i++ {
		if !strings.HasPrefix(snapshots[i], snapshots[i-1]) {
			t.Errorf("snapshot %d (%q) not a prefix extension of %q", i, snapshots[i], snapshots[i-1])
		}
	}
}

func TestTitleExtractedOnceAndStripped(t *testing.T) {
	handler := sseHandler(
		stream.TextDelta("Answer text <chat-ti"),
		stream.TextDelta("tle>Greetings</chat-title>"),
		stream.TextDelta(" and more"),
		stream.Finish(stream.FinishStop),
	)

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	c.Send(conv, "hi", false)
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("finish error: %v", err)
	}

	if got := conv.GetTitle(); got != "Greetings" {
		t.Errorf("title = %q, want %q", got, "Greetings")
	}
	if got := conv.LastMessage().Content; got != "Answer text and more" {
		t.Errorf("content = %q, want stripped text", got)
	}
}

func TestReasoningDeltasDisjointFromContent(t *testing.T) {
	handler := sseHandler(
		stream.ReasoningDelta("thinking "),
		stream.ReasoningDelta("deeply"),
		stream.TextDelta("answer"),
		stream.Finish(stream.FinishStop),
	)

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	c.Send(conv, "hi", true)
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("finish error: %v", err)
	}

	reply := conv.LastMessage()
	if reply.Content != "answer" {
		t.Errorf("content = %q, want %q", reply.Content, "answer")
	}
	if !reply.HasReasoning() || reply.Reasoning.Content != "thinking deeply" {
		t.Errorf("reasoning = %+v", reply.Reasoning)
	}
}

func TestLengthFinishMarksTruncated(t *testing.T) {
	handler := sseHandler(
		stream.TextDelta("partial"),
		stream.Finish(stream.FinishLength),
	)

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	c.Send(conv, "hi", false)
	waitFinish(t, done)

	if !conv.LastMessage().Truncated {
		t.Error("length finish should mark the message truncated")
	}
}

func TestErrorFinishMarksTruncated(t *testing.T) {
	handler := sseHandler(
		stream.TextDelta("partial"),
		stream.Finish(stream.FinishError),
	)

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	c.Send(conv, "hi", false)
	waitFinish(t, done)

	if !conv.LastMessage().Truncated {
		t.Error("error finish should mark the message truncated")
	}
}

func TestEndpointErrorLeavesOnlyUserMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Chat completion failed"}`)
	})

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	c.Send(conv, "hi", false)

	err := waitFinish(t, done)
	if err == nil || err.Error() != "Chat completion failed" {
		t.Errorf("finish error = %v, want endpoint message", err)
	}

	if conv.MessageCount() != 1 {
		t.Fatalf("got %d messages, want only the user message", conv.MessageCount())
	}
	if conv.LastMessage().Role != model.RoleUser {
		t.Errorf("remaining message role = %v, want user", conv.LastMessage().Role)
	}
}

func TestSecondSendWhileStreamingReturnsErrStreamActive(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(stream.TextDelta("slow"))
		fmt.Fprintf(w, "data: %s\n\n", data)
		w.(http.Flusher).Flush()
		<-release
		fmt.Fprintf(w, "data: %s\n\n", stream.DoneMarker)
	})

	conv := model.NewConversation()
	c, done := newConsumer(t, handler, Hooks{})
	if err := c.Send(conv, "first", false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The first stream is parked on the upstream; a second submit is
	// rejected without touching the conversation.
	deadline := time.After(2 * time.Second)
	for !c.Streaming() {
		select {
		case <-deadline:
			t.Fatal("stream never became active")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := c.Send(conv, "second", false); err != ErrStreamActive {
		t.Errorf("second Send = %v, want ErrStreamActive", err)
	}

	close(release)
	waitFinish(t, done)
}

func TestAbortIsSilentAndAllowsResubmit(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(stream.TextDelta("partial"))
		fmt.Fprintf(w, "data: %s\n\n", data)
		w.(http.Flusher).Flush()
		select {
		case <-release:
			fmt.Fprintf(w, "data: %s\n\n", stream.DoneMarker)
		case <-r.Context().Done():
		}
	})

	conv := model.NewConversation()
	gotContent := make(chan struct{}, 1)
	c, done := newConsumer(t, handler, Hooks{
		OnScroll: func() {
			select {
			case gotContent <- struct{}{}:
			default:
			}
		},
	})
	c.Send(conv, "hi", false)

	select {
	case <-gotContent:
	case <-time.After(2 * time.Second):
		t.Fatal("no content arrived before abort")
	}

	c.Abort()
	if err := waitFinish(t, done); err != nil {
		t.Errorf("abort surfaced error: %v", err)
	}

	if c.Streaming() {
		t.Error("consumer still active after abort")
	}
	if conv.LastMessage().Open {
		t.Error("message still open after abort")
	}

	// A fresh cancel handle is installed, so the next submit streams.
	close(release)
	if err := c.Send(conv, "retry", false); err != nil {
		t.Fatalf("resubmit after abort: %v", err)
	}
	waitFinish(t, done)
}

func TestMissingKeyRaisesCredentialRequest(t *testing.T) {
	handler := sseHandler(stream.TextDelta("ok"), stream.Finish(stream.FinishStop))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resolver := keys.Static{}
	done := make(chan error, 1)
	requested := make(chan *keys.CredentialRequest, 1)

	c := New(Config{
		Endpoint: srv.URL,
		Keys:     resolver,
		Provider: "openrouter",
	}, Hooks{
		OnCredentialRequest: func(req *keys.CredentialRequest) { requested <- req },
		OnFinish:            func(final *model.Conversation, err error) { done <- err },
	})
	defer c.Close()

	conv := model.NewConversation()
	c.Send(conv, "hi", false)

	var req *keys.CredentialRequest
	select {
	case req = <-requested:
	case <-time.After(2 * time.Second):
		t.Fatal("credential request never raised")
	}
	if req.Provider != "openrouter" {
		t.Errorf("provider = %q", req.Provider)
	}

	req.Grant("sk-test")
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("finish error after grant: %v", err)
	}

	if key, ok := resolver.Get("openrouter"); !ok || key != "sk-test" {
		t.Errorf("granted key not stored: %q %v", key, ok)
	}
	if conv.LastMessage().Content != "ok" {
		t.Errorf("content = %q", conv.LastMessage().Content)
	}
}

func TestDeniedCredentialAbandonsSilently(t *testing.T) {
	handler := sseHandler(stream.TextDelta("should not arrive"), stream.Finish(stream.FinishStop))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	done := make(chan error, 1)
	c := New(Config{
		Endpoint: srv.URL,
		Keys:     keys.Static{},
		Provider: "openrouter",
	}, Hooks{
		OnCredentialRequest: func(req *keys.CredentialRequest) { req.Deny() },
		OnFinish:            func(final *model.Conversation, err error) { done <- err },
	})
	defer c.Close()

	conv := model.NewConversation()
	c.Send(conv, "hi", false)

	if err := waitFinish(t, done); err != nil {
		t.Errorf("denied credential surfaced error: %v", err)
	}
	if conv.MessageCount() != 1 {
		t.Errorf("got %d messages, want only the user message", conv.MessageCount())
	}
}

func TestUpdateHooksCarryDetachedSnapshots(t *testing.T) {
	handler := sseHandler(
		stream.TextDelta("Hello"),
		stream.TextDelta(" world"),
		stream.Finish(stream.FinishStop),
	)

	conv := model.NewConversation()
	type update struct {
		snapshot *model.Conversation
		content  string
	}
	var updates []update
	hooks := Hooks{
		OnUpdate: func(snapshot *model.Conversation) {
			if snapshot == conv {
				t.Error("update delivered the live conversation instead of a copy")
			}
			content := ""
			if msg := snapshot.LastMessage(); msg != nil && msg.Role == model.RoleAssistant {
				content = msg.Content
			}
			updates = append(updates, update{snapshot: snapshot, content: content})
		},
	}

	c, done := newConsumer(t, handler, hooks)
	if err := c.Send(conv, "hi", false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("finish error: %v", err)
	}

	// Deltas that arrived after a snapshot was handed out must not
	// bleed into it.
	sawIntermediate := false
	for i, u := range updates {
		content := ""
		if msg := u.snapshot.LastMessage(); msg != nil && msg.Role == model.RoleAssistant {
			content = msg.Content
		}
		if content != u.content {
			t.Errorf("snapshot %d changed after delivery: %q, was %q at delivery", i, content, u.content)
		}
		if u.content == "Hello" {
			sawIntermediate = true
		}
	}
	if !sawIntermediate {
		t.Error("no snapshot captured the intermediate state")
	}
	if conv.LastMessage().Content != "Hello world" {
		t.Errorf("live content = %q", conv.LastMessage().Content)
	}
}

func TestCredentialGrantReachesEmbeddedServer(t *testing.T) {
	const liveKey = "sk-live-key"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+liveKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"missing or invalid key"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"Hello"},"finish_reason":null}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Server.RateLimit = 0

	// The embedded server's provider client and the consumer share one
	// resolver that starts empty, so the submission blocks on a
	// credential request and the granted key must reach the upstream
	// on the resumed attempt.
	resolver := keys.Static{}
	prov := provider.New(provider.Config{
		BaseURL:    upstream.URL,
		Provider:   cfg.Provider.Name,
		Keys:       resolver,
		MaxRetries: 1,
	})
	srv := httptest.NewServer(server.NewServer(cfg, prov).Handler())
	t.Cleanup(srv.Close)

	done := make(chan error, 1)
	c := New(Config{
		Endpoint: srv.URL + "/api/chat",
		Keys:     resolver,
		Provider: cfg.Provider.Name,
	}, Hooks{
		OnCredentialRequest: func(req *keys.CredentialRequest) { req.Grant(liveKey) },
		OnFinish:            func(final *model.Conversation, err error) { done <- err },
	})
	t.Cleanup(c.Close)

	conv := model.NewConversation()
	if err := c.Send(conv, "hi", false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := waitFinish(t, done); err != nil {
		t.Fatalf("stream after grant failed: %v", err)
	}

	reply := conv.LastMessage()
	if reply == nil || reply.Role != model.RoleAssistant || reply.Content != "Hello" {
		t.Fatalf("reply = %+v, want assistant %q", reply, "Hello")
	}
}
