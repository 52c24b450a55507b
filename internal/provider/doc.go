// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the client for the hosted inference
// provider behind the chat endpoint.
//
// The provider speaks the OpenAI-compatible chat completions protocol:
// a POST with stream=true answered by Server-Sent Events carrying delta
// chunks. Client.Stream drives one completion, invoking a callback per
// delta.
//
// # Retry Semantics
//
// Connection failures and 5xx responses are retried with exponential
// backoff up to MaxRetries attempts, but only while no stream byte has
// been delivered to the callback. Once the consumer has observed
// content, a retry would replay it, so mid-stream failures surface as a
// StreamError carrying the partial text instead.
package provider
