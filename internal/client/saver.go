// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
)

// saveTimeout bounds a single background write to the record store.
const saveTimeout = 5 * time.Second

// =============================================================================
// COALESCING SAVER
// =============================================================================

// saver persists conversation snapshots without ever blocking the delta
// path. Notifications overwrite the pending snapshot, so a burst of
// deltas collapses into however many writes the store can keep up with;
// the last snapshot always wins.
type saver struct {
	store *storage.Store

	mu      sync.Mutex
	pending *model.Conversation

	notify chan struct{}
	done   chan struct{}
}

// newSaver starts the background save loop. A nil store yields a saver
// whose notifications are dropped.
func newSaver(store *storage.Store) *saver {
	s := &saver{
		store:  store,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// save queues a snapshot of the conversation. Never blocks.
func (s *saver) save(conv *model.Conversation) {
	if s.store == nil || conv == nil {
		return
	}

	s.mu.Lock()
	s.pending = conv.Clone()
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
		// A flush is already queued; it will pick up the new snapshot.
	}
}

// close stops the save loop after flushing any pending snapshot.
func (s *saver) close() {
	close(s.notify)
	<-s.done
}

func (s *saver) run() {
	defer close(s.done)

	for range s.notify {
		s.flush()
	}
	// Final flush on shutdown
	s.flush()
}

func (s *saver) flush() {
	s.mu.Lock()
	conv := s.pending
	s.pending = nil
	s.mu.Unlock()

	if conv == nil || s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if _, err := s.store.Put(ctx, conv); err != nil {
		log.Printf("SAVE_FAILED | conversation=%s error=%v", conv.ID, err)
	}
}
