// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the wire protocol and transforms for chat
// response streaming.
//
// The server emits Server-Sent Events, one JSON event per data line,
// terminated by a [DONE] sentinel:
//
//	data: {"type":"text-delta","content":"Hel"}
//	data: {"type":"reasoning-delta","content":"hmm"}
//	data: {"type":"finish","reason":"stop"}
//	data: [DONE]
//
// Writer and Reader are the two ends of that protocol.
//
// Two transforms sit between a reasoning model's raw output and the
// wire. ThinkInjector guarantees the output begins with a reasoning
// open marker, synthesizing one exactly once when the model omits it.
// ReasoningSplitter then partitions the marked-up text into reasoning
// and normal content, consuming the markers.
package stream
