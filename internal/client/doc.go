// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client consumes the chat endpoint's event stream on behalf of
// a user interface.
//
// A Consumer owns the lifecycle of one submission at a time: it appends
// the user message, posts the conversation to the endpoint, relays
// deltas into the open assistant message, extracts the conversation
// title from the first reply, and persists the conversation through a
// coalescing background saver. The interface layer observes progress
// through Hooks and may abort the in-flight stream at any point.
package client
