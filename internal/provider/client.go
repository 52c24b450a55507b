// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/keys"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxTokens bounds the completion length.
	DefaultMaxTokens = 2048

	// DefaultMaxRetries bounds connection attempts before giving up.
	DefaultMaxRetries = 3

	// retryBaseDelay is the backoff for the first retry; it doubles per
	// attempt up to retryMaxDelay.
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second

	// maxErrorBody caps how much of an error response body is read.
	maxErrorBody = 64 * 1024
)

// =============================================================================
// CLIENT
// =============================================================================

// Config holds provider client configuration. Zero values fall back to
// defaults.
//
// The API key comes from two places: APIKey is a fixed key, and Keys is
// a resolver consulted per request under the Provider name. A key
// granted to the resolver after the client was built is picked up by
// the next request. APIKey wins when both are set.
type Config struct {
	BaseURL    string
	Provider   string
	APIKey     string
	Keys       keys.Resolver
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible completions endpoint.
type Client struct {
	baseURL    string
	provider   string
	apiKey     string
	keys       keys.Resolver
	maxTokens  int
	maxRetries int
	httpClient *http.Client
}

// New creates a provider client from config, applying defaults.
func New(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.HTTPClient == nil {
		// No overall timeout: streams are long-lived, cancellation is
		// the caller's context.
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		keys:       cfg.Keys,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		httpClient: cfg.HTTPClient,
	}
}

// resolveKey returns the API key for the next request: the fixed key
// when one was configured, otherwise the resolver's current answer.
func (c *Client) resolveKey() string {
	if c.apiKey != "" {
		return c.apiKey
	}
	if c.keys != nil {
		if key, ok := c.keys.Get(c.provider); ok {
			return key
		}
	}
	return ""
}

// IsConfigured reports whether an API key is currently available.
func (c *Client) IsConfigured() bool {
	return c.resolveKey() != ""
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream runs one streaming completion, invoking callback per delta.
// It returns the upstream finish reason ("stop", "length", or "" when
// the stream ended without one). Retries apply only until the first
// delta has been delivered; after that a failure returns a StreamError
// with the partial content.
func (c *Client) Stream(ctx context.Context, model string, messages []Message, callback Callback) (string, error) {
	apiKey := c.resolveKey()
	if apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		Stream:    true,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	var accumulated strings.Builder

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			apiErr := c.handleErrorResponse(resp.StatusCode, errBody)
			// 4xx errors are the caller's problem, retrying cannot fix them.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return "", apiErr
			}
			lastErr = apiErr
			continue
		}

		reason, err := c.processStream(ctx, resp.Body, &accumulated, callback)
		resp.Body.Close()
		if err != nil {
			// Body read errors on a canceled request do not always wrap
			// the context error, so consult the context directly.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			if accumulated.Len() > 0 {
				// The consumer saw content, a retry would replay it.
				return "", &StreamError{Partial: accumulated.String(), Err: err}
			}
			lastErr = err
			continue
		}
		return reason, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// processStream reads provider SSE chunks until finish or [DONE].
func (c *Client) processStream(ctx context.Context, body io.Reader, accumulated *strings.Builder, callback Callback) (string, error) {
	reader := bufio.NewReader(body)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return "", nil
			}
			return "", err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[5:])

		if bytes.Equal(data, []byte("[DONE]")) {
			return "", nil
		}

		var ck chunk
		if err := json.Unmarshal(data, &ck); err != nil {
			// Skip malformed chunks
			continue
		}

		if content, reasoning := ck.content(), ck.reasoning(); content != "" || reasoning != "" {
			accumulated.WriteString(content)
			callback(Delta{Content: content, Reasoning: reasoning})
		}

		if reason := ck.finishReason(); reason != "" {
			return reason, nil
		}
	}
}

// handleErrorResponse converts HTTP error responses to typed Go errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		perr := &APIError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}

		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, perr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, perr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, perr.Message)
		default:
			return perr
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Message: string(body), Status: statusCode}
	}
}

// calculateBackoff returns the delay before the next retry attempt.
// Exponential: 500ms, 1000ms, 2000ms, capped at retryMaxDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
