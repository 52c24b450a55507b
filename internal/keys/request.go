// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keys

import (
	"context"
	"sync"
)

// =============================================================================
// CREDENTIAL REQUEST
// =============================================================================

// CredentialRequest asks whoever owns the user interface for a missing
// provider key. The requester blocks in Wait; the UI answers exactly
// once with Grant or Deny. Resolving twice is a no-op, so a prompt that
// is both submitted and dismissed stays safe.
type CredentialRequest struct {
	// Provider names the provider the key is for, for display.
	Provider string

	once  sync.Once
	reply chan grantResult
}

type grantResult struct {
	key     string
	granted bool
}

// NewCredentialRequest creates a request for the given provider.
func NewCredentialRequest(provider string) *CredentialRequest {
	return &CredentialRequest{
		Provider: provider,
		reply:    make(chan grantResult, 1),
	}
}

// Grant resumes the blocked submission with the entered key.
func (r *CredentialRequest) Grant(key string) {
	r.once.Do(func() {
		r.reply <- grantResult{key: key, granted: true}
	})
}

// Deny abandons the blocked submission.
func (r *CredentialRequest) Deny() {
	r.once.Do(func() {
		r.reply <- grantResult{}
	})
}

// Wait blocks until the request is resolved or the context ends. It
// returns the granted key, or granted=false when the user declined.
func (r *CredentialRequest) Wait(ctx context.Context) (key string, granted bool, err error) {
	select {
	case res := <-r.reply:
		return res.key, res.granted, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
