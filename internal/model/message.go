// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleData      Role = "data"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleData:
		return "Data"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the accepted chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleData:
		return true
	}
	return false
}

// =============================================================================
// REASONING TYPE
// =============================================================================

// Reasoning holds the model's chain-of-thought text for an assistant
// message, kept separate from the user-visible content.
type Reasoning struct {
	Content   string `json:"content"`
	Collapsed bool   `json:"collapsed"`
}

// IsEmpty returns true if no reasoning text was produced.
func (r *Reasoning) IsEmpty() bool {
	return r == nil || r.Content == ""
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. For an open (still streaming) assistant message this is
	// replaced wholesale with the session buffer after every delta, so
	// observers only ever see prefixes of the final text.
	Content string `json:"content"`

	// Reasoning text, present only on assistant messages from a
	// reasoning-capable model. Disjoint from Content.
	Reasoning *Reasoning `json:"reasoning,omitempty"`

	// Truncated marks a reply that ended because the token budget ran
	// out rather than because the model finished.
	Truncated bool `json:"truncated,omitempty"`

	// Open marks a streaming assistant message that has not been
	// finalized yet. Not persisted.
	Open bool `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewOpenAssistantMessage creates an empty assistant message in the open
// state, ready to receive streamed content.
func NewOpenAssistantMessage() *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Open:      true,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// SetContent replaces the content of an open message with the current
// session buffer. No-op once the message is closed.
func (m *Message) SetContent(buffer string) {
	if m.Open {
		m.Content = buffer
	}
}

// AppendReasoning accumulates reasoning text onto an open message,
// allocating the Reasoning field on first use.
func (m *Message) AppendReasoning(delta string) {
	if !m.Open || delta == "" {
		return
	}
	if m.Reasoning == nil {
		m.Reasoning = &Reasoning{Collapsed: true}
	}
	m.Reasoning.Content += delta
}

// Close finalizes an open message. Idempotent.
func (m *Message) Close() {
	m.Open = false
}

// HasReasoning returns true if the message carries reasoning text.
func (m *Message) HasReasoning() bool {
	return !m.Reasoning.IsEmpty()
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(strings.TrimSpace(m.Content), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Clone returns a copy of the message, deep enough that mutating the
// copy's reasoning does not touch the original.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Reasoning != nil {
		r := *m.Reasoning
		cp.Reasoning = &r
	}
	return &cp
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
