// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
)

// newTestModel builds a sized chat model with no store or key resolver.
func newTestModel(t *testing.T) Model {
	t.Helper()

	cfg := config.Default()
	cfg.UI.Markdown = false

	m := New(cfg, "http://127.0.0.1:0/api/chat", nil, nil)
	t.Cleanup(m.Shutdown)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestConversationUpdatedMsgAdoptsSnapshot(t *testing.T) {
	m := newTestModel(t)

	// Snapshots from the consumer share the submitted conversation's ID.
	snap := m.Conversation().Clone()
	snap.AddUserMessage("hi there")

	next, _ := m.Update(ConversationUpdatedMsg{Conversation: snap})
	m = next.(Model)

	if m.Conversation() != snap {
		t.Error("model still renders the old conversation")
	}
	if m.session.Get(snap.ID) != snap {
		t.Error("snapshot not recorded in the session list")
	}
}

func TestStreamFinishedMsgAdoptsFinalSnapshot(t *testing.T) {
	m := newTestModel(t)

	final := m.Conversation().Clone()
	final.AddUserMessage("hi")
	final.OpenAssistantMessage().SetContent("done")
	final.CloseOpenMessage()

	next, _ := m.Update(StreamFinishedMsg{Conversation: final})
	m = next.(Model)

	if m.Streaming() {
		t.Error("model still streaming after finish")
	}
	if m.Conversation() != final {
		t.Error("final snapshot not adopted")
	}
}

func TestCollapseToggleSurvivesSnapshots(t *testing.T) {
	m := newTestModel(t)

	conv := m.Conversation().Clone()
	conv.AddUserMessage("hi")
	reply := conv.OpenAssistantMessage()
	reply.AppendReasoning("thinking")

	// The consumer's copy never sees the toggle; its next snapshot
	// arrives with the default collapsed flag.
	newer := conv.Clone()
	newer.LastMessage().AppendReasoning(" harder")

	next, _ := m.Update(ConversationUpdatedMsg{Conversation: conv})
	m = next.(Model)

	m.toggleThoughts()
	if m.Conversation().LastMessage().Reasoning.Collapsed {
		t.Fatal("toggle did not expand reasoning")
	}

	next, _ = m.Update(ConversationUpdatedMsg{Conversation: newer})
	m = next.(Model)

	got := m.Conversation().LastMessage()
	if got.Reasoning.Collapsed {
		t.Error("expanded reasoning collapsed again on the next snapshot")
	}
	if got.Reasoning.Content != "thinking harder" {
		t.Errorf("reasoning = %q", got.Reasoning.Content)
	}
}

func TestLateSnapshotForAbandonedConversationKeepsView(t *testing.T) {
	m := newTestModel(t)
	current := m.Conversation()

	// A stream aborted by ctrl+n can still flush snapshots for the
	// conversation the user just left.
	stale := model.NewConversation()
	stale.AddUserMessage("old stream")

	next, _ := m.Update(ConversationUpdatedMsg{Conversation: stale})
	m = next.(Model)

	if m.Conversation() != current {
		t.Error("late snapshot replaced the active conversation")
	}
	if m.session.Get(stale.ID) != stale {
		t.Error("late snapshot not kept in the session list")
	}
}

func TestPickerReusesSessionConversation(t *testing.T) {
	m := newTestModel(t)

	conv := model.NewConversation()
	conv.SetTitle("Earlier chat")
	conv.AddUserMessage("hello")

	next, _ := m.Update(ConversationUpdatedMsg{Conversation: conv})
	m = next.(Model)

	m.overlay = overlayPicker
	m.pickerItems = []model.ConversationMeta{{ID: conv.ID, Title: "Earlier chat"}}
	m.pickerCursor = 0

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	// No store in this model, so a store read would be a nil deref; the
	// in-memory copy must satisfy the selection.
	if cmd != nil {
		t.Error("selection issued a store load for a session conversation")
	}
	if m.Conversation() != conv {
		t.Error("picker did not switch to the session copy")
	}
	if m.overlay != overlayNone {
		t.Error("picker overlay still up after selection")
	}
}

func TestPickerViewTruncatesLongTitles(t *testing.T) {
	m := newTestModel(t)

	longTitle := strings.Repeat("very long title ", 20)
	m.overlay = overlayPicker
	m.pickerItems = []model.ConversationMeta{{ID: "c1", Title: longTitle}}

	out := m.pickerView()
	if strings.Contains(out, longTitle) {
		t.Error("picker rendered the full title")
	}
	if !strings.Contains(out, "...") {
		t.Error("truncated title missing ellipsis")
	}
}
