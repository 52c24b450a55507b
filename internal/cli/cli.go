// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and shared dispatch for streamchat.
package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdServe
	CmdKeys
	CmdRecords
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	Reasoning  bool   // start with the reasoning model selected
	Endpoint   string // use an external chat endpoint instead of the embedded server
	ConfigPath string // alternate config file

	// Command-specific
	Subcommand string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `streamchat - streaming AI chat for the terminal

Streamchat talks to a hosted inference provider through a local
endpoint server, streams replies token by token, and keeps your
conversations in a local record store.

Usage:
  streamchat                     Start the TUI (default)
  streamchat chat                Line-oriented REPL chat
  streamchat serve               Run the chat endpoint server standalone
  streamchat keys [subcommand]   Manage stored provider API keys
  streamchat records [subcommand] Manage saved conversations
  streamchat version             Show version
  streamchat help                Show this help

Keys Commands:
  streamchat keys set [provider]    Prompt for and store an API key
  streamchat keys list              List providers with a stored key
  streamchat keys delete <provider> Remove a stored key

Records Commands:
  streamchat records list           List saved conversations
  streamchat records show <id>      Print a conversation transcript
  streamchat records delete <id>    Delete a conversation
  streamchat records clear          Delete all conversations
  streamchat records export <id>    Export a conversation to a file
    --format md|json|txt            Export format (default: md)
    --output DIR                    Output directory (default: .)

Interactive Commands (during chat REPL):
  /help               Show available commands
  /new                Start a fresh conversation
  /list               List saved conversations
  /load <id>          Load a saved conversation
  /reasoning          Toggle the reasoning model
  /quit               Exit chat
  Ctrl+C              Cancel current generation
  Ctrl+D              Exit chat

Global Flags:
  --endpoint URL  Use an external chat endpoint instead of the embedded server
  --config PATH   Load configuration from PATH
  --reasoning     Start with the reasoning model selected
  -q, --quiet     Minimal output
  -v, --verbose   Debug output

Examples:
  streamchat                                Start the TUI
  streamchat chat                           REPL chat against the embedded server
  streamchat chat --endpoint http://host:8090/api/chat
  streamchat serve                          Serve /api/chat on the configured port
  streamchat keys set openrouter            Store a provider key

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("streamchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining
	if len(remaining) > 0 {
		parsed.Subcommand = remaining[0]
	}

	switch cmd {
	case "tui":
		return CmdTUI, parsed
	case "chat":
		return CmdChat, parsed
	case "serve":
		return CmdServe, parsed
	case "keys", "key":
		return CmdKeys, parsed
	case "records", "record":
		return CmdRecords, parsed
	case "version", "--version", "-V":
		return CmdVersion, parsed
	case "help", "--help", "-h":
		return CmdHelp, parsed
	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		return CmdHelp, parsed
	}
}

// parseGlobalFlags strips global flags from argv, returning the rest.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	remaining := make([]string, 0, len(argv))

	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--reasoning":
			args.Reasoning = true
		case arg == "--endpoint":
			if i+1 < len(argv) {
				args.Endpoint = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--endpoint="):
			args.Endpoint = strings.TrimPrefix(arg, "--endpoint=")
		case arg == "--config":
			if i+1 < len(argv) {
				args.ConfigPath = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, args
}
