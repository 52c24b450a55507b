// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, streamed assistant messages, and the
// immutable conversation collection the UI and persister observe.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, and optional reasoning
//   - Reasoning: Chain-of-thought text kept disjoint from visible content
//   - List: Immutable conversation collection with copy-on-write updates
//   - Role: Message role enumeration (user, assistant, system, data)
//
// # Streaming Model
//
// An in-flight reply is represented by an "open" assistant message. The
// stream consumer appends an empty open message before the first delta
// arrives, replaces its content with the accumulated buffer after every
// delta, and closes it when the stream ends for any reason. At most one
// message per conversation is open at a time.
//
// # Usage
//
// Create a new conversation and stream into it:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//	msg := conv.OpenAssistantMessage()
//	msg.SetContent("Hi th")
//	msg.SetContent("Hi there!")
//	conv.CloseOpenMessage()
package model
