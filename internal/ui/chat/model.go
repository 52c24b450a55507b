// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/client"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving streaming response
)

// overlay identifies which modal layer, if any, is on top of the view.
type overlay int

const (
	overlayNone overlay = iota
	overlayPicker
	overlayKeyPrompt
)

// storeTimeout bounds picker loads and conversation fetches.
const storeTimeout = 5 * time.Second

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state   State
	overlay overlay

	// Styling
	theme    *styles.Theme
	renderer *renderer

	// Dimensions
	width  int
	height int
	ready  bool

	// Conversation being rendered. While a stream is in flight this is
	// the latest snapshot from the consumer, never the live object.
	conversation *model.Conversation

	// Every conversation touched this session, so switching back to one
	// through the picker reuses the in-memory copy.
	session model.List

	// Streaming consumer and its event bridge. Hooks run on the
	// consumer goroutine and push messages into events; waitForEvent
	// drains them back into the Bubble Tea loop.
	consumer *client.Consumer
	events   chan tea.Msg

	// Persistence
	store *storage.Store

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	keyInput textinput.Model
	spinner  spinner.Model

	// Key bindings
	keyMap KeyMap

	// Reasoning model toggle for the next submission
	reasoningMode bool

	// Pending credential request while the key prompt is up
	credReq *keys.CredentialRequest

	// Picker overlay state
	pickerItems  []model.ConversationMeta
	pickerCursor int

	// Error state
	errText string

	// Config
	cfg *config.Config
}

// New creates a chat model wired to the given endpoint, stores, and key
// resolver.
func New(cfg *config.Config, endpoint string, store *storage.Store, keyStore keys.Resolver) Model {
	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Send a message..."
	input.CharLimit = 4000
	input.Focus()

	keyInput := textinput.New()
	keyInput.Placeholder = "API key"
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	events := make(chan tea.Msg, 64)

	consumer := client.New(client.Config{
		Endpoint: endpoint,
		Timeout:  cfg.Provider.Timeout(),
		Store:    store,
		Keys:     keyStore,
		Provider: cfg.Provider.Name,
	}, client.Hooks{
		// Updates carry full snapshots, so dropping one when the channel
		// is full loses nothing: a later snapshot supersedes it and the
		// finish message always carries the final state.
		OnUpdate: func(snapshot *model.Conversation) {
			sendCoalesced(events, ConversationUpdatedMsg{Conversation: snapshot})
		},
		OnScroll: func() { sendCoalesced(events, ScrollMsg{}) },
		OnCredentialRequest: func(req *keys.CredentialRequest) {
			events <- CredentialRequestMsg{Request: req}
		},
		OnFinish: func(final *model.Conversation, err error) {
			events <- StreamFinishedMsg{Conversation: final, Err: err}
		},
	})

	conversation := model.NewConversation()

	return Model{
		theme:        theme,
		renderer:     newRenderer(theme, cfg.UI.Markdown),
		conversation: conversation,
		session:      model.NewList(conversation),
		consumer:     consumer,
		events:       events,
		store:        store,
		input:        input,
		keyInput:     keyInput,
		spinner:      sp,
		keyMap:       DefaultKeyMap(),
		cfg:          cfg,
	}
}

// sendCoalesced drops render notifications when the channel is full; a
// queued one already covers the pending state.
func sendCoalesced(events chan tea.Msg, msg tea.Msg) {
	select {
	case events <- msg:
	default:
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// waitForEvent blocks on the consumer's event bridge. Each delivered
// message re-issues the command, keeping exactly one pending read.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Streaming reports whether a response stream is in flight.
func (m Model) Streaming() bool {
	return m.state == StateStreaming
}

// Conversation exposes the active conversation, mostly for tests.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// Shutdown aborts any in-flight stream and flushes pending saves.
func (m Model) Shutdown() {
	m.consumer.Close()
}

// =============================================================================
// COMMANDS
// =============================================================================

// loadPickerCmd fetches the stored conversation listing.
func (m Model) loadPickerCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if store == nil {
			return PickerLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		items, err := store.List(ctx)
		return PickerLoadedMsg{Items: items, Err: err}
	}
}

// loadConversationCmd fetches one stored conversation by id.
func (m Model) loadConversationCmd(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		conv, err := store.Get(ctx, id)
		return ConversationLoadedMsg{Conversation: conv, Err: err}
	}
}
