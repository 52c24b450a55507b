// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// RESOLVER INTERFACE
// =============================================================================

// Resolver answers API key lookups by provider name.
type Resolver interface {
	// Get returns the key for a provider and whether one is stored.
	Get(provider string) (string, bool)

	// Set stores the key for a provider.
	Set(provider, key string) error
}

// Static is a fixed in-memory Resolver, useful for tests and for
// environment-variable keys.
type Static map[string]string

// Get implements Resolver.
func (s Static) Get(provider string) (string, bool) {
	key, ok := s[provider]
	return key, ok && key != ""
}

// Set implements Resolver.
func (s Static) Set(provider, key string) error {
	s[provider] = key
	return nil
}

// =============================================================================
// FILE STORE
// =============================================================================

// Store is a file-backed Resolver with values encrypted at rest.
type Store struct {
	mu     sync.RWMutex
	path   string
	box    *box
	values map[string]string // provider -> plaintext key
}

// Open loads the key store at path (conventionally
// ~/.streamchat/keys.json), creating the master key on first use.
func Open(path string) (*Store, error) {
	masterKey, err := loadOrCreateMasterKey(filepath.Join(filepath.Dir(path), "master.key"))
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(masterKey)
	return open(path, masterKey)
}

// OpenWithPassphrase loads the key store with a passphrase-derived key
// instead of a stored master key.
func OpenWithPassphrase(path, passphrase string) (*Store, error) {
	key, err := loadPassphraseKey(path+".salt", passphrase)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)
	return open(path, key)
}

func open(path string, key []byte) (*Store, error) {
	b, err := newBox(key)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:   path,
		box:    b,
		values: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads and decrypts the key file. A missing file is an empty store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read key store: %w", err)
	}

	var sealed map[string]string
	if err := json.Unmarshal(data, &sealed); err != nil {
		return fmt.Errorf("failed to parse key store: %w", err)
	}

	for provider, value := range sealed {
		plain, err := s.box.open(value)
		if err != nil {
			return fmt.Errorf("failed to decrypt key for %s: %w", provider, err)
		}
		s.values[provider] = plain
	}
	return nil
}

// Get implements Resolver.
func (s *Store) Get(provider string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.values[provider]
	return key, ok && key != ""
}

// Set implements Resolver, persisting immediately.
func (s *Store) Set(provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[provider] = key
	return s.save()
}

// Delete removes a provider's key.
func (s *Store) Delete(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, provider)
	return s.save()
}

// Providers lists providers with a stored key.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for provider, key := range s.values {
		if key != "" {
			out = append(out, provider)
		}
	}
	return out
}

// save writes the encrypted key file. Caller holds the write lock.
func (s *Store) save() error {
	sealed := make(map[string]string, len(s.values))
	for provider, key := range s.values {
		value, err := s.box.seal(key)
		if err != nil {
			return fmt.Errorf("failed to encrypt key for %s: %w", provider, err)
		}
		sealed[provider] = value
	}

	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key store: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(s.path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key store: %w", err)
	}
	return nil
}
