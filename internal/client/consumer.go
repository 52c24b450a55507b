// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/tags"
)

// ErrStreamActive is returned when a submission arrives while a stream
// is already in flight for this consumer.
var ErrStreamActive = errors.New("a response stream is already active")

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds consumer configuration.
type Config struct {
	// Endpoint is the full URL of the chat endpoint.
	Endpoint string

	// Timeout bounds a whole streaming session. Zero means no timeout
	// beyond explicit cancellation.
	Timeout time.Duration

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Store receives conversation snapshots as the stream progresses.
	// Nil disables persistence.
	Store *storage.Store

	// Keys resolves provider API keys. When set and the provider has no
	// key, submissions raise a credential request before streaming.
	Keys keys.Resolver

	// Provider names the provider for key lookup and prompts.
	Provider string
}

// Hooks are the consumer's callbacks into the interface layer. All of
// them are invoked from the streaming goroutine; nil hooks are skipped.
//
// The live conversation belongs to the streaming goroutine while a
// stream is in flight, so hooks never expose it. OnUpdate and OnFinish
// hand the interface a detached deep copy instead; rendering from
// anything else during a stream is a data race.
type Hooks struct {
	// OnUpdate fires after the conversation changed, carrying a
	// snapshot to re-render from.
	OnUpdate func(snapshot *model.Conversation)

	// OnScroll fires when new visible content arrived, so the view can
	// follow the stream.
	OnScroll func()

	// OnCredentialRequest fires when a submission needs an API key. The
	// interface resolves the request with Grant or Deny; the submission
	// stays blocked until it does.
	OnCredentialRequest func(*keys.CredentialRequest)

	// OnFinish fires exactly once per submission when the stream ends,
	// carrying the final snapshot. A nil error covers success and
	// user-initiated aborts.
	OnFinish func(final *model.Conversation, err error)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	Reasoning bool          `json:"reasoning"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// CONSUMER
// =============================================================================

// Consumer drives one chat submission at a time against the endpoint.
type Consumer struct {
	cfg        Config
	hooks      Hooks
	httpClient *http.Client
	cancelMgr  *cancelManager
	saver      *saver

	mu     sync.Mutex
	active bool
}

// New creates a Consumer. Call Close when done to flush pending saves.
func New(cfg Config, hooks Hooks) *Consumer {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Streams are long-lived; the session context is the timeout.
		httpClient = &http.Client{}
	}
	return &Consumer{
		cfg:        cfg,
		hooks:      hooks,
		httpClient: httpClient,
		cancelMgr:  newCancelManager(),
		saver:      newSaver(cfg.Store),
	}
}

// Streaming reports whether a stream is currently in flight.
func (c *Consumer) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Abort cancels the in-flight stream, if any. The open message is
// closed with whatever content has arrived; no error is surfaced.
func (c *Consumer) Abort() {
	c.cancelMgr.cancel()
}

// Close flushes pending saves and releases the consumer.
func (c *Consumer) Close() {
	c.cancelMgr.cancel()
	c.saver.close()
}

// Send appends content as a user message and streams the reply into the
// conversation. It returns ErrStreamActive when a stream is already in
// flight; otherwise it returns immediately and progress is reported
// through the hooks.
func (c *Consumer) Send(conv *model.Conversation, content string, reasoning bool) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrStreamActive
	}
	c.active = true
	c.mu.Unlock()

	ctx := context.Background()
	var cancel context.CancelFunc
	if c.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	c.cancelMgr.set(cancel)

	conv.AddUserMessage(content)
	c.update(conv)
	c.saver.save(conv)

	go c.run(ctx, conv, reasoning)
	return nil
}

// run executes one streaming session. It owns the active flag and the
// cancel handle for its duration.
func (c *Consumer) run(ctx context.Context, conv *model.Conversation, reasoning bool) {
	err := c.session(ctx, conv, reasoning)

	// Stream teardown is identical for every outcome: close whatever
	// message is open, persist, drop the cancel handle so the next
	// submission installs a fresh one, and clear the in-flight flag.
	conv.CloseOpenMessage()
	c.update(conv)
	c.saver.save(conv)
	c.cancelMgr.cancel()

	c.mu.Lock()
	c.active = false
	c.mu.Unlock()

	// A user-initiated abort is not an error.
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if c.hooks.OnFinish != nil {
		c.hooks.OnFinish(conv.Clone(), err)
	}
}

// session performs the credential check, the POST, and the event loop.
func (c *Consumer) session(ctx context.Context, conv *model.Conversation, reasoning bool) error {
	if err := c.ensureCredential(ctx); err != nil {
		return err
	}

	resp, err := c.post(ctx, conv, reasoning)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeEndpointError(resp)
	}

	return c.consume(ctx, conv, resp.Body)
}

// ensureCredential blocks the submission on a credential request when
// the provider has no key yet. Granting stores the key and resumes;
// denying abandons the submission silently.
func (c *Consumer) ensureCredential(ctx context.Context) error {
	if c.cfg.Keys == nil {
		return nil
	}
	if _, ok := c.cfg.Keys.Get(c.cfg.Provider); ok {
		return nil
	}
	if c.hooks.OnCredentialRequest == nil {
		return fmt.Errorf("no API key configured for %s", c.cfg.Provider)
	}

	req := keys.NewCredentialRequest(c.cfg.Provider)
	c.hooks.OnCredentialRequest(req)

	key, granted, err := req.Wait(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return context.Canceled
	}
	if err := c.cfg.Keys.Set(c.cfg.Provider, key); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	return nil
}

// post sends the conversation to the chat endpoint.
func (c *Consumer) post(ctx context.Context, conv *model.Conversation, reasoning bool) (*http.Response, error) {
	payload := chatRequest{
		Messages:  make([]chatMessage, 0, len(conv.Messages)),
		Reasoning: reasoning,
	}
	for _, msg := range conv.Messages {
		payload.Messages = append(payload.Messages, chatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return c.httpClient.Do(req)
}

// consume runs the event loop over the response stream.
func (c *Consumer) consume(ctx context.Context, conv *model.Conversation, body io.Reader) error {
	msg := conv.OpenAssistantMessage()
	c.update(conv)

	reader := stream.NewReader(body)
	var buffer string
	titleDone := false

	for {
		ev, err := reader.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch ev.Type {
		case stream.EventTextDelta:
			buffer += ev.Content
			if !titleDone {
				if title, rest, found := tags.ExtractTitle(buffer); found {
					conv.SetTitle(title)
					buffer = rest
					titleDone = true
				}
			}
			msg.SetContent(buffer)
			c.update(conv)
			if c.hooks.OnScroll != nil {
				c.hooks.OnScroll()
			}
			c.saver.save(conv)

		case stream.EventReasoningDelta:
			msg.AppendReasoning(ev.Content)
			c.update(conv)
			c.saver.save(conv)

		case stream.EventFinish:
			if ev.Reason == stream.FinishLength || ev.Reason == stream.FinishError {
				msg.Truncated = true
			}

		default:
			// A glitch in one frame should not kill the stream.
			log.Printf("EVENT_SKIPPED | type=%s", ev.Type)
		}
	}
}

// update delivers a detached snapshot to the interface. Cloning here,
// on the goroutine that owns the conversation, is what keeps the
// interface's reads race-free.
func (c *Consumer) update(conv *model.Conversation) {
	if c.hooks.OnUpdate != nil {
		c.hooks.OnUpdate(conv.Clone())
	}
}

// decodeEndpointError extracts the flat JSON error body the endpoint
// sends on non-2xx responses.
func decodeEndpointError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		return errors.New(body.Error)
	}
	return fmt.Errorf("chat request failed with status %d", resp.StatusCode)
}
