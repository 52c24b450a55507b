// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI command
// handlers for streamchat.
//
// # Key Types
//
//   - Command: enumeration of available commands
//   - Args: parsed command-line arguments
//
// # Usage
//
// Parse and dispatch:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    return cli.HandleChat(args)
//	case cli.CmdServe:
//	    return cli.HandleServe(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - (default): full-screen TUI
//   - chat: line-oriented REPL for dumb terminals and scripting
//   - serve: run the chat endpoint server standalone
//   - keys: manage stored provider API keys
//   - records: manage saved conversations
//   - version, help
package cli
