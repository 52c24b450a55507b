// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// newTestRenderer disables markdown so output is predictable plain text.
func newTestRenderer() *renderer {
	return newRenderer(styles.NewTheme(), false)
}

func TestRenderEmptyConversationShowsHint(t *testing.T) {
	r := newTestRenderer()

	out := r.conversation(model.NewConversation(), false, "")
	if !strings.Contains(out, "Start a conversation") {
		t.Errorf("expected start hint, got %q", out)
	}
}

func TestRenderUserAndAssistantMessages(t *testing.T) {
	r := newTestRenderer()
	conv := model.NewConversation()
	conv.AddUserMessage("hello there")
	msg := conv.OpenAssistantMessage()
	msg.SetContent("hi, how can I help?")
	conv.CloseOpenMessage()

	out := r.conversation(conv, false, "")
	for _, want := range []string{"You", "hello there", "Assistant", "hi, how can I help?"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSkipsSystemAndDataMessages(t *testing.T) {
	r := newTestRenderer()
	conv := model.NewConversation()
	conv.AddMessage(model.NewMessage(model.RoleSystem, "internal prompt"))
	conv.AddMessage(model.NewMessage(model.RoleData, "client state"))
	conv.AddUserMessage("visible")

	out := r.conversation(conv, false, "")
	if strings.Contains(out, "internal prompt") || strings.Contains(out, "client state") {
		t.Errorf("system/data content leaked into transcript:\n%s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("user message missing:\n%s", out)
	}
}

func TestRenderThinkingSpinnerForEmptyOpenMessage(t *testing.T) {
	r := newTestRenderer()
	conv := model.NewConversation()
	conv.AddUserMessage("question")
	conv.OpenAssistantMessage()

	out := r.conversation(conv, true, "*")
	if !strings.Contains(out, "Thinking...") {
		t.Errorf("expected thinking indicator:\n%s", out)
	}

	// Once deltas arrive the spinner gives way to the content.
	conv.LastMessage().SetContent("partial answer")
	out = r.conversation(conv, true, "*")
	if strings.Contains(out, "Thinking...") {
		t.Errorf("spinner should disappear once content streams:\n%s", out)
	}
	if !strings.Contains(out, "partial answer") {
		t.Errorf("streamed content missing:\n%s", out)
	}
}

func TestRenderTruncatedNote(t *testing.T) {
	r := newTestRenderer()
	conv := model.NewConversation()
	conv.AddUserMessage("q")
	msg := conv.OpenAssistantMessage()
	msg.SetContent("cut off mid")
	msg.Truncated = true
	conv.CloseOpenMessage()

	out := r.conversation(conv, false, "")
	if !strings.Contains(out, "response truncated") {
		t.Errorf("expected truncation note:\n%s", out)
	}
}

func TestRenderReasoningCollapseToggle(t *testing.T) {
	r := newTestRenderer()
	msg := model.NewOpenAssistantMessage()
	msg.AppendReasoning("step one thinking")
	msg.SetContent("final answer")
	msg.Close()

	msg.Reasoning.Collapsed = false
	out := r.message(msg)
	if !strings.Contains(out, "step one thinking") {
		t.Errorf("expanded reasoning body missing:\n%s", out)
	}

	msg.Reasoning.Collapsed = true
	out = r.message(msg)
	if strings.Contains(out, "step one thinking") {
		t.Errorf("collapsed reasoning should hide the body:\n%s", out)
	}
	if !strings.Contains(out, "reasoning hidden") {
		t.Errorf("collapsed header missing:\n%s", out)
	}
}

func TestRendererResizeClampsWidth(t *testing.T) {
	r := newTestRenderer()
	r.resize(3)
	if r.width < 10 {
		t.Errorf("width = %d, want clamped to at least 10", r.width)
	}
}
