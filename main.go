// streamchat - streaming AI chat for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/cli"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/server"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with the cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdChat:
		err = runREPL(args)
	case cli.CmdServe:
		err = runServe(args)
	case cli.CmdKeys:
		err = runKeys(args)
	case cli.CmdRecords:
		err = runRecords(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration, honoring --config.
func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// =============================================================================
// COMMAND RUNNERS
// =============================================================================

func runTUI(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	keyStore, err := keys.Open(cfg.Storage.KeysPath)
	if err != nil {
		return err
	}

	endpoint, stopServer, err := resolveEndpoint(args, cfg, keyStore)
	if err != nil {
		return err
	}
	defer stopServer()

	m := chat.New(cfg, endpoint, store, keyStore)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	final, err := program.Run()
	if fm, ok := final.(chat.Model); ok {
		fm.Shutdown()
	}
	return err
}

func runREPL(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	keyStore, err := keys.Open(cfg.Storage.KeysPath)
	if err != nil {
		return err
	}

	endpoint, stopServer, err := resolveEndpoint(args, cfg, keyStore)
	if err != nil {
		return err
	}
	defer stopServer()

	return cli.HandleChat(args, cfg, endpoint, store, keyStore)
}

func runServe(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	keyStore, err := keys.Open(cfg.Storage.KeysPath)
	if err != nil {
		return err
	}
	return cli.HandleServe(args, cfg, keyStore)
}

func runKeys(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	keyStore, err := keys.Open(cfg.Storage.KeysPath)
	if err != nil {
		return err
	}
	return cli.HandleKeys(args, cfg, keyStore)
}

func runRecords(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	return cli.HandleRecords(args, store)
}

// =============================================================================
// EMBEDDED SERVER
// =============================================================================

// resolveEndpoint returns the chat endpoint URL, starting the embedded
// server when no external --endpoint was given. The returned stop
// function shuts the embedded server down; it is a no-op for external
// endpoints.
func resolveEndpoint(args cli.Args, cfg *config.Config, keyStore keys.Resolver) (string, func(), error) {
	if args.Endpoint != "" {
		return args.Endpoint, func() {}, nil
	}

	client := cli.NewProviderClient(cfg, keyStore)
	srv := server.NewServer(cfg, client)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Give the listener a moment to bind so an occupied port surfaces
	// here instead of as a connection error on the first message.
	select {
	case err := <-errCh:
		return "", nil, fmt.Errorf("embedded server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return fmt.Sprintf("http://%s/api/chat", srv.Addr()), stop, nil
}
