// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/streamchat/internal/model"
)

func testConversation() *model.Conversation {
	conv := model.NewConversation()
	conv.SetTitle("Sorting in Go")
	conv.AddUserMessage("how do I sort a slice?")

	msg := conv.OpenAssistantMessage()
	msg.AppendReasoning("the user wants sort.Slice")
	msg.SetContent("Use `sort.Slice` with a less function.")
	conv.CloseOpenMessage()
	return conv
}

func TestNewSelectsFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"md", ".md", false},
		{"markdown", ".md", false},
		{"json", ".json", false},
		{"txt", ".txt", false},
		{"", ".txt", false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			exp, err := New(tt.format, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown format")
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.format, err)
			}
			if got := exp.FileExtension(); got != tt.wantExt {
				t.Errorf("extension = %q, want %q", got, tt.wantExt)
			}
		})
	}
}

func TestMarkdownExportContent(t *testing.T) {
	exp, _ := New("md", nil)
	out, err := exp.Export(testConversation())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	text := string(out)
	for _, want := range []string{
		"# Sorting in Go",
		"### You",
		"### Assistant",
		"sort.Slice",
		"<details><summary>Reasoning</summary>",
		"> the user wants sort.Slice",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q:\n%s", want, text)
		}
	}
}

func TestMarkdownExportWithoutReasoning(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeReasoning = false

	exp, _ := New("md", opts)
	out, err := exp.Export(testConversation())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if strings.Contains(string(out), "Reasoning") {
		t.Error("reasoning included despite IncludeReasoning=false")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	conv := testConversation()
	exp, _ := New("json", nil)
	out, err := exp.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded model.Conversation
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if decoded.ID != conv.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, conv.ID)
	}
	if len(decoded.Messages) != len(conv.Messages) {
		t.Errorf("messages = %d, want %d", len(decoded.Messages), len(conv.Messages))
	}
}

func TestTextExportSkipsSystemMessages(t *testing.T) {
	conv := testConversation()
	conv.AddMessage(model.NewSystemMessage("hidden prompt"))

	exp, _ := New("txt", nil)
	out, err := exp.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if strings.Contains(string(out), "hidden prompt") {
		t.Error("system message leaked into transcript")
	}
}

func TestExportEmptyConversationFails(t *testing.T) {
	for _, format := range []string{"md", "txt"} {
		exp, _ := New(format, nil)
		if _, err := exp.Export(model.NewConversation()); err == nil {
			t.Errorf("%s export of empty conversation should fail", format)
		}
	}
}

func TestExportToFileWritesUnderOutputDir(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	exp, _ := New("md", opts)
	path, err := ExportToFile(testConversation(), exp, opts)
	if err != nil {
		t.Fatalf("ExportToFile: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("path = %q, want under %q", path, dir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("output file missing: %v", err)
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path = %q, want .md suffix", path)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Simple Title", "Simple_Title"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
