// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. Streaming messages are produced by the consumer goroutine
// and delivered over the model's event channel; the rest are results of
// commands the model issued itself.
package chat

import (
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// ConversationUpdatedMsg carries a detached snapshot of the streaming
// conversation for the viewport to render. The consumer goroutine owns
// the live conversation; the view only ever touches snapshots.
type ConversationUpdatedMsg struct {
	Conversation *model.Conversation
}

// ScrollMsg signals that new visible content arrived and the viewport
// should follow the stream.
type ScrollMsg struct{}

// StreamFinishedMsg signals that the in-flight stream ended, carrying
// the final snapshot. Err is nil on success and on user-initiated
// aborts.
type StreamFinishedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// CredentialRequestMsg carries a blocked submission's request for an
// API key. The key prompt overlay resolves it.
type CredentialRequestMsg struct {
	Request *keys.CredentialRequest
}

// =============================================================================
// PERSISTENCE MESSAGES
// =============================================================================

// PickerLoadedMsg delivers the stored conversation listing for the
// picker overlay.
type PickerLoadedMsg struct {
	Items []model.ConversationMeta
	Err   error
}

// ConversationLoadedMsg delivers a conversation selected in the picker.
type ConversationLoadedMsg struct {
	Conversation *model.Conversation
	Err          error
}
