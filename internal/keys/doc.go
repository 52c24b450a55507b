// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keys stores and resolves provider API keys.
//
// Keys are kept in a JSON file with every value encrypted using
// AES-256-GCM. The encryption key is either a random master key stored
// alongside the file with 0600 permissions, or derived from a user
// passphrase via PBKDF2-SHA-256.
//
// The package also defines CredentialRequest, the mechanism by which a
// stream consumer asks its UI for a missing key. The request carries a
// resume capability: calling Grant(key) saves the key and lets the
// blocked submission retry, Deny abandons it. There is no global
// resolver state; each request is a value routed to whoever can answer
// it.
package keys
