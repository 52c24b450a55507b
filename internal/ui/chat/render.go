// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// defaultWrapWidth is used before the first resize arrives.
const defaultWrapWidth = 80

// =============================================================================
// CONVERSATION RENDERER
// =============================================================================

// renderer turns a conversation into viewport content. Assistant
// replies go through the markdown renderer when enabled; everything
// else is plain styled text.
type renderer struct {
	theme      *styles.Theme
	markdown   *glamour.TermRenderer
	markdownOn bool
	width      int
}

func newRenderer(theme *styles.Theme, markdownOn bool) *renderer {
	r := &renderer{
		theme:      theme,
		markdownOn: markdownOn,
	}
	r.resize(defaultWrapWidth)
	return r
}

// resize rebuilds the markdown renderer for a new wrap width.
func (r *renderer) resize(width int) {
	if width < 10 {
		width = 10
	}
	r.width = width

	if !r.markdownOn {
		return
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fall back to plain text rendering
		r.markdownOn = false
		return
	}
	r.markdown = md
}

// conversation renders the full transcript. When thinking is set and
// the open message has produced nothing yet, a spinner line stands in
// for the reply.
func (r *renderer) conversation(conv *model.Conversation, thinking bool, spinnerView string) string {
	if conv == nil || conv.IsEmpty() {
		return r.theme.HeaderSubtext.Render("Start a conversation by typing below.")
	}

	var b strings.Builder
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleSystem || msg.Role == model.RoleData {
			continue
		}

		if msg.Open && msg.IsEmpty() && !msg.HasReasoning() {
			if thinking {
				b.WriteString(r.theme.RoleLabel.Render("Assistant"))
				b.WriteString("\n")
				b.WriteString(spinnerView + r.theme.ThinkingText.Render(" Thinking..."))
				b.WriteString("\n\n")
			}
			continue
		}

		b.WriteString(r.message(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// message renders a single message with its reasoning block, content,
// and truncation note.
func (r *renderer) message(msg *model.Message) string {
	var b strings.Builder

	switch msg.Role {
	case model.RoleUser:
		b.WriteString(r.theme.RoleLabel.Render("You"))
		b.WriteString("\n")
		b.WriteString(r.theme.UserBubble.Width(r.width).Render(msg.Content))

	case model.RoleAssistant:
		b.WriteString(r.theme.RoleLabel.Render("Assistant"))
		b.WriteString("\n")
		if msg.HasReasoning() {
			b.WriteString(r.reasoning(msg.Reasoning))
			b.WriteString("\n")
		}
		if msg.Content != "" {
			b.WriteString(r.theme.AssistantBubble.Width(r.width).Render(r.content(msg)))
		}
		if msg.Truncated {
			b.WriteString("\n")
			b.WriteString(r.theme.TruncatedNote.Render("... response truncated"))
		}

	default:
		b.WriteString(msg.Content)
	}

	b.WriteString("\n")
	return b.String()
}

// content renders assistant text, through markdown when enabled. An
// open message streams as plain text; re-rendering markdown on every
// delta is wasted work and makes partial constructs flicker.
func (r *renderer) content(msg *model.Message) string {
	if !r.markdownOn || r.markdown == nil || msg.Open {
		return msg.Content
	}
	out, err := r.markdown.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	return strings.TrimRight(out, "\n")
}

// reasoning renders the chain-of-thought block, honoring its collapsed
// flag.
func (r *renderer) reasoning(reasoning *model.Reasoning) string {
	if reasoning.Collapsed {
		return r.theme.ReasoningHeader.Render("> reasoning hidden (C-r to expand)")
	}
	header := r.theme.ReasoningHeader.Render("v reasoning (C-r to collapse)")
	body := r.theme.ReasoningBlock.Width(r.width).Render(reasoning.Content)
	return header + "\n" + body
}
