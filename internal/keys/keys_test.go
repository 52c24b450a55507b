// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keys

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")

	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Set("openrouter", "sk-secret-123"))

	key, ok := store.Get("openrouter")
	assert.True(t, ok)
	assert.Equal(t, "sk-secret-123", key)

	_, ok = store.Get("unknown")
	assert.False(t, ok)

	// Reopen with the same master key file.
	store2, err := Open(path)
	require.NoError(t, err)
	key, ok = store2.Get("openrouter")
	assert.True(t, ok)
	assert.Equal(t, "sk-secret-123", key)
}

func TestStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("openrouter", "sk-plaintext-secret"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-plaintext-secret")
	assert.Contains(t, string(raw), EncryptedPrefix)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStoreWithPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")

	store, err := OpenWithPassphrase(path, "hunter2")
	require.NoError(t, err)
	require.NoError(t, store.Set("openrouter", "sk-abc"))

	// Same passphrase opens the store.
	store2, err := OpenWithPassphrase(path, "hunter2")
	require.NoError(t, err)
	key, ok := store2.Get("openrouter")
	assert.True(t, ok)
	assert.Equal(t, "sk-abc", key)

	// Wrong passphrase fails authentication.
	_, err = OpenWithPassphrase(path, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "keys.json"))
	require.NoError(t, err)

	require.NoError(t, store.Set("a", "k1"))
	require.NoError(t, store.Set("b", "k2"))
	require.NoError(t, store.Delete("a"))

	_, ok := store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, store.Providers())
}

func TestBoxOpenPlaintextPassthrough(t *testing.T) {
	key := make([]byte, KeySize)
	b, err := newBox(key)
	require.NoError(t, err)

	got, err := b.open("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", got)

	_, err = b.open(EncryptedPrefix + "!!!bad base64")
	assert.Error(t, err)
}

func TestStaticResolver(t *testing.T) {
	r := Static{"openrouter": "sk-1", "empty": ""}

	key, ok := r.Get("openrouter")
	assert.True(t, ok)
	assert.Equal(t, "sk-1", key)

	// Empty values do not count as configured.
	_, ok = r.Get("empty")
	assert.False(t, ok)
}

func TestCredentialRequestGrant(t *testing.T) {
	req := NewCredentialRequest("openrouter")

	go req.Grant("sk-new")

	key, granted, err := req.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, "sk-new", key)
}

func TestCredentialRequestDeny(t *testing.T) {
	req := NewCredentialRequest("openrouter")
	req.Deny()

	_, granted, err := req.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestCredentialRequestResolveOnce(t *testing.T) {
	req := NewCredentialRequest("openrouter")
	req.Grant("first")
	req.Deny()
	req.Grant("second")

	key, granted, err := req.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, "first", key)
}

func TestCredentialRequestContextTimeout(t *testing.T) {
	req := NewCredentialRequest("openrouter")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := req.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte(strings.Repeat("s", SaltSize))
	k1 := DeriveKey("pass", salt)
	k2 := DeriveKey("pass", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	k3 := DeriveKey("other", salt)
	assert.NotEqual(t, k1, k3)
}
