// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/util"
)

// pickerTitleWidth caps conversation titles in the picker overlay.
const pickerTitleWidth = 40

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.overlay {
	case overlayPicker:
		return m.pickerView()
	case overlayKeyPrompt:
		return m.keyPromptView()
	}

	sections := []string{
		m.headerView(),
		m.viewport.View(),
	}
	if m.errText != "" {
		sections = append(sections, m.theme.ErrorBox.Width(m.width-2).Render(m.errText))
	}
	sections = append(sections, m.inputView(), m.statusView())

	return strings.Join(sections, "\n")
}

// headerView renders the title line, keeping the mode badge visible
// even when the title would fill the row.
func (m Model) headerView() string {
	maxTitle := m.width - 16
	if maxTitle < 8 {
		maxTitle = 8
	}
	title := m.theme.HeaderTitle.Render(util.TruncateWidth(m.conversation.GetTitle(), maxTitle))

	mode := "general"
	if m.reasoningMode {
		mode = "reasoning"
	}
	badge := m.theme.ModeBadge.Render("[" + mode + "]")

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + badge)
}

// inputView renders the input line.
func (m Model) inputView() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(
		m.theme.InputPrompt.Render("> ") + m.input.View(),
	)
}

// statusView renders the shortcut bar.
func (m Model) statusView() string {
	shortcuts := []struct{ key, desc string }{
		{"Enter", "send"},
		{"Esc", "stop"},
		{"C-n", "new"},
		{"C-p", "browse"},
		{"C-t", "reasoning"},
		{"C-r", "thoughts"},
		{"C-c", "quit"},
	}

	parts := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		parts = append(parts, m.theme.ShortcutKey.Render(s.key)+m.theme.ShortcutDesc.Render(" "+s.desc))
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// pickerView renders the conversation picker overlay.
func (m Model) pickerView() string {
	var b strings.Builder
	b.WriteString(m.theme.PromptTitle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(m.pickerItems) == 0 {
		b.WriteString(m.theme.PickerMeta.Render("No saved conversations yet."))
	}

	for i, item := range m.pickerItems {
		line := fmt.Sprintf("%s  %s", util.TruncateWidth(item.Title, pickerTitleWidth), m.theme.PickerMeta.Render(
			fmt.Sprintf("(%d messages, %s)", item.MessageCount, item.UpdatedAt.Format("Jan 2 15:04")),
		))
		if i == m.pickerCursor {
			b.WriteString(m.theme.PickerItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.theme.PickerItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.PromptHint.Render("up/down select, Enter load, Esc close"))

	box := m.theme.PickerBox.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// keyPromptView renders the API key prompt overlay.
func (m Model) keyPromptView() string {
	provider := ""
	if m.credReq != nil {
		provider = m.credReq.Provider
	}

	var b strings.Builder
	b.WriteString(m.theme.PromptTitle.Render("API key required"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Enter your %s API key to continue.\n\n", provider))
	b.WriteString(m.keyInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.theme.PromptHint.Render("Enter submit, Esc cancel"))

	box := m.theme.PromptBox.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
