// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// List is an immutable collection of conversations. Every update returns
// a new List sharing untouched conversations with the old one, so a
// snapshot taken by a renderer or a persister stays valid while a stream
// mutates state. The conversation being updated is cloned, never edited
// in place.
type List struct {
	items []*Conversation
}

// NewList creates a list from the given conversations.
func NewList(convs ...*Conversation) List {
	items := make([]*Conversation, len(convs))
	copy(items, convs)
	return List{items: items}
}

// Len returns the number of conversations.
func (l List) Len() int {
	return len(l.items)
}

// Get returns the conversation with the given ID, or nil.
func (l List) Get(id string) *Conversation {
	for _, c := range l.items {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// All returns the underlying slice. Callers must not mutate it.
func (l List) All() []*Conversation {
	return l.items
}

// Upsert returns a new list with conv replacing any existing conversation
// with the same ID, or appended if none exists.
func (l List) Upsert(conv *Conversation) List {
	items := make([]*Conversation, len(l.items))
	copy(items, l.items)
	for i, c := range items {
		if c.ID == conv.ID {
			items[i] = conv
			return List{items: items}
		}
	}
	return List{items: append(items, conv)}
}

// Update clones the conversation with the given ID, applies fn to the
// clone, and returns a new list containing it. The original list and its
// conversations are untouched. Returns the list unchanged if the ID is
// unknown.
func (l List) Update(id string, fn func(*Conversation)) List {
	cur := l.Get(id)
	if cur == nil {
		return l
	}
	clone := cur.Clone()
	fn(clone)
	return l.Upsert(clone)
}

// Remove returns a new list without the conversation with the given ID.
func (l List) Remove(id string) List {
	items := make([]*Conversation, 0, len(l.items))
	for _, c := range l.items {
		if c.ID != id {
			items = append(items, c)
		}
	}
	return List{items: items}
}
