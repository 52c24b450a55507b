// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP chat endpoint.
//
// Endpoints:
//   - POST /api/chat - Streaming chat completion (Server-Sent Events)
//   - GET  /health   - Health check
//
// The chat handler proxies the hosted inference provider and, for
// reasoning requests, normalizes and splits the model output so the
// wire protocol always carries reasoning and content as separate
// event types.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/tags"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxMessageLength is the maximum length for a single message to prevent DoS.
	MaxMessageLength = 100000

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// MaxRequestBodySize is the maximum size for request body to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// systemPrompt frames every completion request.
const systemPrompt = "You are a helpful assistant. Answer the user's questions clearly and concisely."

// titleInstruction is appended to the system prompt for the first
// exchange of a conversation so the model names it.
const titleInstruction = "End your reply with a short title for this conversation wrapped in " +
	tags.TitleOpen + tags.TitleClose + " tags."

// validRoles is the set of acceptable message roles.
// SECURITY: whitelisted to prevent role injection against the provider.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"data":      true,
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// ChatMessage is one message of the conversation being continued.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Reasoning bool          `json:"reasoning"`
}

// validateMessages checks every message against the role whitelist.
func validateMessages(messages []ChatMessage) error {
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant, system, data", msg.Role, i)
		}
	}
	return nil
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP server fronting the inference provider.
type Server struct {
	cfg      config.ServerConfig
	models   config.ProviderConfig
	provider *provider.Client
	router   *http.ServeMux
	server   *http.Server
}

// NewServer creates a Server for the given configuration and provider
// client.
func NewServer(cfg *config.Config, client *provider.Client) *Server {
	s := &Server{
		cfg:      cfg.Server,
		models:   cfg.Provider,
		provider: client,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		CORSMiddleware(DefaultCORSConfig()),
		LoggingMiddleware(log.Default()),
	}
	if s.cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimit)))
	}
	return Chain(middlewares...)(s.router)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
//
// The response status is deferred until the provider produces its first
// delta: failures before that point are reported as a plain JSON error,
// never as a stream that dies immediately.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		// SECURITY: log full details internally, return generic message.
		log.Printf("REQUEST_INVALID | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "Request must contain at least one message")
		return
	}
	if len(req.Messages) > MaxMessageCount {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many messages: maximum is %d", MaxMessageCount))
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		log.Printf("REQUEST_INVALID | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "Invalid message format. Messages must have valid roles (user, assistant, system, data)")
		return
	}
	for i, msg := range req.Messages {
		if len(msg.Content) > MaxMessageLength {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Message %d exceeds maximum length of %d", i, MaxMessageLength))
			return
		}
	}

	model := s.models.GeneralModel
	if req.Reasoning {
		model = s.models.ReasoningModel
	}

	messages := buildProviderMessages(req.Messages)

	if err := s.streamCompletion(r.Context(), w, model, messages, req.Reasoning); err != nil {
		log.Printf("REQUEST_ERROR | model=%s error=%v", model, err)
		s.writeError(w, http.StatusInternalServerError, "Chat completion failed")
	}
}

// buildProviderMessages converts the request into the provider wire
// format, prepending the system prompt. The title instruction is added
// only for the opening exchange, where the conversation has no title
// yet.
func buildProviderMessages(messages []ChatMessage) []provider.Message {
	prompt := systemPrompt
	if len(messages) <= 1 {
		prompt += "\n\n" + titleInstruction
	}

	out := make([]provider.Message, 0, len(messages)+1)
	out = append(out, provider.NewSystemMessage(prompt))
	for _, msg := range messages {
		// Data messages are client-side state, not model input.
		if msg.Role == "data" {
			continue
		}
		out = append(out, provider.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// streamCompletion runs the provider stream and relays deltas as SSE
// events. A non-nil return means nothing was written and the caller
// should send the JSON error response.
func (s *Server) streamCompletion(ctx context.Context, w http.ResponseWriter, model string, messages []provider.Message, reasoning bool) error {
	sw, err := stream.NewWriter(w)
	if err != nil {
		return err
	}

	// started flips when the first event hits the wire; after that the
	// 200 and the SSE framing are committed and errors must be reported
	// in-band as a finish event.
	started := false
	var writeErr error

	send := func(ev stream.Event) {
		if writeErr != nil {
			return
		}
		started = true
		writeErr = sw.WriteEvent(ev)
	}

	emit := s.buildPipeline(send, reasoning)

	reason, err := s.provider.Stream(ctx, model, messages, emit.deltaFn)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away, nothing left to write to.
			return nil
		}
		if !started {
			return err
		}
		// Mid-stream failure: the content sent so far is a valid prefix,
		// so end the stream with an error finish rather than killing the
		// connection.
		log.Printf("STREAM_ERROR | model=%s error=%v", model, err)
		emit.close()
		send(stream.Finish(stream.FinishError))
		sw.WriteDone()
		return nil
	}

	emit.close()
	send(stream.Finish(mapFinishReason(reason)))
	if writeErr != nil {
		log.Printf("STREAM_WRITE_ERROR | model=%s error=%v", model, writeErr)
		return nil
	}
	return sw.WriteDone()
}

// pipeline adapts provider deltas to wire events, optionally routing
// content through the reasoning transform stages.
type pipeline struct {
	deltaFn provider.Callback
	close   func()
}

// buildPipeline wires the delta path for one completion. For reasoning
// requests, content runs through the injector and splitter so the
// response always separates chain-of-thought from the reply, whichever
// way the model checkpoint marks it up. Reasoning the provider already
// delivers out-of-band bypasses the stages.
func (s *Server) buildPipeline(send func(stream.Event), reasoning bool) pipeline {
	emitReasoning := func(text string) error {
		send(stream.ReasoningDelta(text))
		return nil
	}
	emitText := func(text string) error {
		send(stream.TextDelta(text))
		return nil
	}

	if !reasoning {
		return pipeline{
			deltaFn: func(d provider.Delta) {
				if d.Reasoning != "" {
					emitReasoning(d.Reasoning)
				}
				if d.Content != "" {
					emitText(d.Content)
				}
			},
			close: func() {},
		}
	}

	splitter := stream.NewReasoningSplitter(emitText, emitReasoning)
	injector := stream.NewThinkInjector(splitter.Write)

	return pipeline{
		deltaFn: func(d provider.Delta) {
			if d.Reasoning != "" {
				emitReasoning(d.Reasoning)
			}
			if d.Content != "" {
				injector.Write(d.Content)
			}
		},
		close: func() {
			injector.Close()
			splitter.Close()
		},
	}
}

// mapFinishReason converts the provider finish reason to the wire value.
func mapFinishReason(reason string) stream.FinishReason {
	switch reason {
	case "length":
		return stream.FinishLength
	default:
		return stream.FinishStop
	}
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ProviderStatus string `json:"provider_status"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:  "ok",
		Version: Version,
	}

	if s.provider != nil && s.provider.IsConfigured() {
		health.ProviderStatus = "configured"
	} else {
		health.ProviderStatus = "not_configured"
		health.Status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.Addr(),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: completion streams are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s", s.Addr(), Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the flat JSON error body clients decode on non-2xx.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
