// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the conversation record store.
//
// Records are kept in a single SQLite database file. Identity and
// listing metadata live in columns; the message history is a JSON
// payload, which keeps the schema stable while the message shape
// evolves.
//
// Put assigns an ID to records that lack one and returns it, so callers
// can save a fresh conversation and learn its identity in one step.
// Saving is expected to be fire-and-forget from the stream consumer's
// perspective; the store itself is synchronous and safe for concurrent
// use.
package storage
