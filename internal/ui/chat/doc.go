// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The view is a single Bubble Tea model: a scrolling conversation
// viewport, an input line, and a status bar, with modal overlays for
// the conversation picker and the API key prompt. Streaming progress
// arrives from the consumer goroutine over an event channel that the
// model drains with a self-renewing command.
package chat
