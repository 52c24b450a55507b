// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/client"
	"github.com/jeranaias/streamchat/internal/model"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		switch m.overlay {
		case overlayPicker:
			return m.handlePickerKey(msg)
		case overlayKeyPrompt:
			return m.handleKeyPromptKey(msg)
		default:
			return m.handleKey(msg)
		}

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConversationUpdatedMsg:
		m.adoptSnapshot(msg.Conversation)
		m.refreshViewport(false)
		return m, m.waitForEvent()

	case ScrollMsg:
		m.refreshViewport(true)
		return m, m.waitForEvent()

	case StreamFinishedMsg:
		m.state = StateReady
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		m.adoptSnapshot(msg.Conversation)
		m.refreshViewport(true)
		return m, m.waitForEvent()

	case CredentialRequestMsg:
		m.credReq = msg.Request
		m.overlay = overlayKeyPrompt
		m.keyInput.Reset()
		m.keyInput.Focus()
		m.input.Blur()
		return m, m.waitForEvent()

	case PickerLoadedMsg:
		if msg.Err != nil {
			m.errText = "failed to list conversations: " + msg.Err.Error()
			return m, nil
		}
		m.pickerItems = msg.Items
		m.pickerCursor = 0
		m.overlay = overlayPicker
		m.input.Blur()
		return m, nil

	case ConversationLoadedMsg:
		if msg.Err != nil {
			m.errText = "failed to load conversation: " + msg.Err.Error()
			return m, nil
		}
		m.conversation = msg.Conversation
		m.session = m.session.Upsert(msg.Conversation)
		m.errText = ""
		m.refreshViewport(true)
		return m, nil
	}

	// Forward everything else to the focused input
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize recomputes component dimensions.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 2
	inputHeight := 3
	statusHeight := 1
	viewportHeight := m.height - headerHeight - inputHeight - statusHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = viewportHeight
	}

	m.input.Width = m.width - 6
	m.renderer.resize(m.width - 4)
	m.refreshViewport(false)
	return m, nil
}

// handleKey processes keys when no overlay is up.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.consumer.Abort()
		m.Shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.state == StateStreaming {
			m.consumer.Abort()
		}
		m.errText = ""
		return m, nil

	case key.Matches(msg, m.keyMap.NewChat):
		if m.state == StateStreaming {
			m.consumer.Abort()
		}
		m.conversation = model.NewConversation()
		m.session = m.session.Upsert(m.conversation)
		m.errText = ""
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, m.keyMap.Browse):
		if m.state == StateStreaming {
			return m, nil
		}
		return m, m.loadPickerCmd()

	case key.Matches(msg, m.keyMap.Reasoning):
		m.reasoningMode = !m.reasoningMode
		return m, nil

	case key.Matches(msg, m.keyMap.Thoughts):
		m.toggleThoughts()
		m.refreshViewport(false)
		return m, nil

	case key.Matches(msg, m.keyMap.Up), key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the current input line as a user message. The consumer
// streams into its own clone of the conversation; the view keeps
// rendering its copy until snapshots start arriving.
func (m Model) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	err := m.consumer.Send(m.conversation.Clone(), content, m.reasoningMode)
	if errors.Is(err, client.ErrStreamActive) {
		m.errText = "wait for the current response to finish (Esc stops it)"
		return m, nil
	}

	// Echo the submission immediately; the first snapshot replaces it.
	m.conversation.AddUserMessage(content)
	m.input.Reset()
	m.errText = ""
	m.state = StateStreaming
	m.refreshViewport(true)
	return m, m.spinner.Tick
}

// handlePickerKey processes keys while the conversation picker is up.
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+p":
		m.overlay = overlayNone
		m.input.Focus()
		return m, nil

	case "up", "k":
		if m.pickerCursor > 0 {
			m.pickerCursor--
		}
		return m, nil

	case "down", "j":
		if m.pickerCursor < len(m.pickerItems)-1 {
			m.pickerCursor++
		}
		return m, nil

	case "enter":
		if len(m.pickerItems) == 0 {
			m.overlay = overlayNone
			m.input.Focus()
			return m, nil
		}
		id := m.pickerItems[m.pickerCursor].ID
		m.overlay = overlayNone
		m.input.Focus()
		// Conversations touched this session are at least as fresh as
		// the stored copy; only unfamiliar ones need a store read.
		if conv := m.session.Get(id); conv != nil {
			m.conversation = conv
			m.errText = ""
			m.refreshViewport(true)
			return m, nil
		}
		return m, m.loadConversationCmd(id)

	case "ctrl+c":
		m.Shutdown()
		return m, tea.Quit
	}
	return m, nil
}

// handleKeyPromptKey processes keys while the API key prompt is up.
func (m Model) handleKeyPromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		entered := strings.TrimSpace(m.keyInput.Value())
		if entered == "" {
			return m, nil
		}
		if m.credReq != nil {
			m.credReq.Grant(entered)
			m.credReq = nil
		}
		m.keyInput.Reset()
		m.overlay = overlayNone
		m.input.Focus()
		return m, nil

	case "esc":
		if m.credReq != nil {
			m.credReq.Deny()
			m.credReq = nil
		}
		m.keyInput.Reset()
		m.overlay = overlayNone
		m.input.Focus()
		return m, nil

	case "ctrl+c":
		if m.credReq != nil {
			m.credReq.Deny()
		}
		m.Shutdown()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

// adoptSnapshot replaces the rendered conversation with a consumer
// snapshot. Reasoning collapse toggles are carried over from the copy
// being replaced, so a toggle made mid-stream survives the next delta.
// A snapshot for a conversation the user already left (new chat during
// an abort, say) refreshes the session copy without touching the view.
func (m *Model) adoptSnapshot(conv *model.Conversation) {
	if conv == nil {
		return
	}
	if m.conversation == nil || m.conversation.ID != conv.ID {
		m.session = m.session.Upsert(conv)
		return
	}
	carryCollapseState(m.conversation, conv)
	m.conversation = conv
	m.session = m.session.Upsert(conv)
}

// carryCollapseState copies each message's reasoning collapse flag from
// prev onto the matching message in next.
func carryCollapseState(prev, next *model.Conversation) {
	collapsed := make(map[string]bool, len(prev.Messages))
	for _, msg := range prev.Messages {
		if msg.HasReasoning() {
			collapsed[msg.ID] = msg.Reasoning.Collapsed
		}
	}
	for _, msg := range next.Messages {
		if state, ok := collapsed[msg.ID]; ok && msg.HasReasoning() {
			msg.Reasoning.Collapsed = state
		}
	}
}

// toggleThoughts flips the collapsed flag on the most recent message
// with reasoning, going through the session list's copy-on-write
// update so the rendered conversation is never mutated in place.
func (m *Model) toggleThoughts() {
	var target string
	for i := len(m.conversation.Messages) - 1; i >= 0; i-- {
		if msg := m.conversation.Messages[i]; msg.HasReasoning() {
			target = msg.ID
			break
		}
	}
	if target == "" {
		return
	}

	m.session = m.session.Update(m.conversation.ID, func(conv *model.Conversation) {
		for _, msg := range conv.Messages {
			if msg.ID == target {
				msg.Reasoning.Collapsed = !msg.Reasoning.Collapsed
			}
		}
	})
	if conv := m.session.Get(m.conversation.ID); conv != nil {
		m.conversation = conv
	}
}

// refreshViewport re-renders the conversation into the viewport.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderer.conversation(m.conversation, m.state == StateStreaming, m.spinner.View()))
	if follow {
		m.viewport.GotoBottom()
	}
}
