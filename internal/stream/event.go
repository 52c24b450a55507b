// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType identifies a stream event on the wire.
type EventType string

const (
	// EventTextDelta carries a fragment of user-visible content.
	EventTextDelta EventType = "text-delta"

	// EventReasoningDelta carries a fragment of chain-of-thought text.
	EventReasoningDelta EventType = "reasoning-delta"

	// EventFinish is the final event of every successful stream.
	EventFinish EventType = "finish"
)

// FinishReason explains why a stream ended.
type FinishReason string

const (
	// FinishStop means the model completed its reply.
	FinishStop FinishReason = "stop"

	// FinishLength means the token budget ran out mid-reply. Consumers
	// mark the message truncated.
	FinishLength FinishReason = "length"

	// FinishError means the upstream failed after streaming began. The
	// content received so far is a valid prefix but incomplete.
	FinishError FinishReason = "error"
)

// DoneMarker terminates the event stream after the finish event.
const DoneMarker = "[DONE]"

// Event is a single frame of the chat response stream.
type Event struct {
	Type    EventType    `json:"type"`
	Content string       `json:"content,omitempty"`
	Reason  FinishReason `json:"reason,omitempty"`
}

// TextDelta builds a content fragment event.
func TextDelta(content string) Event {
	return Event{Type: EventTextDelta, Content: content}
}

// ReasoningDelta builds a reasoning fragment event.
func ReasoningDelta(content string) Event {
	return Event{Type: EventReasoningDelta, Content: content}
}

// Finish builds the terminal event.
func Finish(reason FinishReason) Event {
	return Event{Type: EventFinish, Reason: reason}
}
