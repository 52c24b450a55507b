// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented REPL chat for streamchat.
//
// Handles the "streamchat chat" command, a readline-style alternative
// to the TUI for dumb terminals and remote shells.
//
// Interactive Commands (during chat):
//   /help               Show available commands
//   /new                Start a fresh conversation
//   /list               List saved conversations
//   /load <id>          Load a saved conversation
//   /reasoning          Toggle the reasoning model
//   /quit               Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/streamchat/internal/client"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// storeTimeout bounds record store calls issued from the REPL.
const storeTimeout = 5 * time.Second

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader wraps liner with persistent input history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader(historyFile string) *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &lineReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// read reads one line, recording non-empty input in history.
func (r *lineReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// close persists history and releases the terminal.
func (r *lineReader) close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// replSession holds the state for an interactive REPL chat.
type replSession struct {
	cfg          *config.Config
	consumer     *client.Consumer
	store        *storage.Store
	conversation *model.Conversation
	reasoning    bool
	quiet        bool
	input        *lineReader

	// printed tracks how much of the open reply has been written to
	// stdout, so stream updates print only the new suffix.
	printed          int
	reasoningPrinted int

	// finished receives the terminal error of each stream.
	finished chan error
}

// HandleChat runs the REPL against the given chat endpoint. The caller
// owns the store and key resolver; the REPL owns the consumer.
func HandleChat(args Args, cfg *config.Config, endpoint string, store *storage.Store, keyStore keys.Resolver) error {
	session := &replSession{
		cfg:          cfg,
		store:        store,
		conversation: model.NewConversation(),
		reasoning:    args.Reasoning,
		quiet:        args.Quiet,
		finished:     make(chan error, 1),
	}

	session.consumer = client.New(client.Config{
		Endpoint: endpoint,
		Timeout:  cfg.Provider.Timeout(),
		Store:    store,
		Keys:     keyStore,
		Provider: cfg.Provider.Name,
	}, client.Hooks{
		OnUpdate:            session.printProgress,
		OnCredentialRequest: session.promptForKey,
		OnFinish: func(final *model.Conversation, err error) {
			session.finished <- err
		},
	})
	defer session.consumer.Close()

	session.input = newLineReader(filepath.Join(filepath.Dir(config.Path()), "chat_history"))
	defer session.input.close()

	if !session.quiet {
		session.printWelcome(endpoint)
	}

	// Ctrl+C during generation cancels the stream instead of killing
	// the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if session.consumer.Streaming() {
				session.consumer.Abort()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.input.read(promptStyle.Render("you> "))
		if err != nil {
			// liner.ErrPromptAborted is Ctrl+C at the prompt; EOF is
			// Ctrl+D. Both exit cleanly.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := session.slashCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := session.send(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send submits a message and blocks until the stream finishes.
func (s *replSession) send(input string) error {
	s.printed = 0
	s.reasoningPrinted = 0

	if err := s.consumer.Send(s.conversation, input, s.reasoning); err != nil {
		return err
	}

	fmt.Println()
	err := <-s.finished
	fmt.Println()
	fmt.Println()
	if err != nil {
		return err
	}
	return nil
}

// printProgress writes newly streamed text to stdout. It runs on the
// consumer goroutine, which is the only writer of these counters, and
// reads only the snapshot it was handed.
func (s *replSession) printProgress(snapshot *model.Conversation) {
	msg := snapshot.LastMessage()
	if msg == nil || msg.Role != model.RoleAssistant {
		return
	}

	if msg.Reasoning != nil {
		body := msg.Reasoning.Content
		if len(body) > s.reasoningPrinted {
			fmt.Print(reasoningStyle.Render(body[s.reasoningPrinted:]))
			s.reasoningPrinted = len(body)
		}
	}
	if len(msg.Content) > s.printed {
		fmt.Print(msg.Content[s.printed:])
		s.printed = len(msg.Content)
	}
}

// promptForKey asks for a provider API key when none is stored. It
// runs on the consumer goroutine while the REPL blocks in send.
func (s *replSession) promptForKey(req *keys.CredentialRequest) {
	if !IsTTY() {
		req.Deny()
		return
	}

	fmt.Println()
	key, err := ReadPassword(fmt.Sprintf("API key for %s: ", req.Provider))
	if err != nil || strings.TrimSpace(key) == "" {
		req.Deny()
		return
	}
	req.Grant(strings.TrimSpace(key))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// slashCommand processes a /command. A false return exits the REPL.
func (s *replSession) slashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?":
		s.printHelp()
		return true, nil

	case "/new", "/n":
		s.consumer.Abort()
		s.conversation = model.NewConversation()
		fmt.Println(commandStyle.Render("[New conversation]"))
		return true, nil

	case "/list", "/l":
		return true, s.listConversations()

	case "/load":
		if len(parts) < 2 {
			return true, errors.New("usage: /load <id>")
		}
		return true, s.loadConversation(parts[1])

	case "/reasoning", "/r":
		s.reasoning = !s.reasoning
		if s.reasoning {
			fmt.Println(commandStyle.Render("[Reasoning model on]"))
		} else {
			fmt.Println(commandStyle.Render("[Reasoning model off]"))
		}
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", parts[0])
	}
}

// listConversations prints saved conversation metadata.
func (s *replSession) listConversations() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	metas, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println(infoStyle.Render("[No saved conversations]"))
		return nil
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Saved Conversations"))
	for _, meta := range metas {
		fmt.Printf("  %s  %s %s\n",
			commandStyle.Render(meta.ID),
			util.PadRight(util.TruncateWidth(meta.Title, listTitleWidth), listTitleWidth),
			infoStyle.Render(fmt.Sprintf("(%d messages, %s)",
				meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))))
	}
	fmt.Println()
	return nil
}

// loadConversation replaces the active conversation with a saved one.
func (s *replSession) loadConversation(id string) error {
	if s.consumer.Streaming() {
		return errors.New("wait for the current response to finish first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	s.conversation = conv
	fmt.Printf("%s %s (%d messages)\n",
		commandStyle.Render("[Loaded]"),
		conv.GetTitle(),
		conv.MessageCount())
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (s *replSession) printWelcome(endpoint string) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("streamchat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Endpoint:"), commandStyle.Render(endpoint))
	if s.reasoning {
		fmt.Printf("%s %s\n", infoStyle.Render("Model:"),
			commandStyle.Render(s.cfg.Provider.ReasoningModel))
	} else {
		fmt.Printf("%s %s\n", infoStyle.Render("Model:"),
			commandStyle.Render(s.cfg.Provider.GeneralModel))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func (s *replSession) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help", "Show this help"},
		{"/new", "Start a fresh conversation"},
		{"/list", "List saved conversations"},
		{"/load <id>", "Load a saved conversation"},
		{"/reasoning", "Toggle the reasoning model"},
		{"/quit", "Exit chat"},
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Available Commands"))
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-12s", c.cmd)),
			infoStyle.Render(c.desc))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current generation, Ctrl+D exits"))
	fmt.Println()
}
