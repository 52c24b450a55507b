// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
)

func TestParseDefaultsToTUI(t *testing.T) {
	cmd, args := Parse(nil)
	if cmd != CmdTUI {
		t.Errorf("cmd = %v, want CmdTUI", cmd)
	}
	if args.Quiet || args.Verbose || args.Reasoning {
		t.Errorf("unexpected flags set: %+v", args)
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"chat", []string{"chat"}, CmdChat},
		{"serve", []string{"serve"}, CmdServe},
		{"keys", []string{"keys", "set"}, CmdKeys},
		{"keys singular alias", []string{"key", "list"}, CmdKeys},
		{"records", []string{"records", "list"}, CmdRecords},
		{"version", []string{"version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"unknown falls back to help", []string{"frobnicate"}, CmdHelp},
		{"explicit tui", []string{"tui"}, CmdTUI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := Parse(tt.argv)
			if cmd != tt.want {
				t.Errorf("Parse(%v) = %v, want %v", tt.argv, cmd, tt.want)
			}
		})
	}
}

func TestParseGlobalFlags(t *testing.T) {
	cmd, args := Parse([]string{"--reasoning", "-q", "chat"})
	if cmd != CmdChat {
		t.Fatalf("cmd = %v, want CmdChat", cmd)
	}
	if !args.Reasoning {
		t.Error("Reasoning flag not parsed")
	}
	if !args.Quiet {
		t.Error("Quiet flag not parsed")
	}
}

func TestParseEndpointFlagForms(t *testing.T) {
	_, args := Parse([]string{"--endpoint", "http://host:8090/api/chat", "chat"})
	if args.Endpoint != "http://host:8090/api/chat" {
		t.Errorf("Endpoint = %q", args.Endpoint)
	}

	_, args = Parse([]string{"chat", "--endpoint=http://other:9000/api/chat"})
	if args.Endpoint != "http://other:9000/api/chat" {
		t.Errorf("Endpoint = %q", args.Endpoint)
	}
}

func TestParseSubcommandAndRaw(t *testing.T) {
	cmd, args := Parse([]string{"records", "show", "conv_abc123"})
	if cmd != CmdRecords {
		t.Fatalf("cmd = %v, want CmdRecords", cmd)
	}
	if args.Subcommand != "show" {
		t.Errorf("Subcommand = %q, want %q", args.Subcommand, "show")
	}
	if len(args.Raw) != 2 || args.Raw[1] != "conv_abc123" {
		t.Errorf("Raw = %v", args.Raw)
	}
}
