// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tags

import "testing"

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantTitle     string
		wantRemainder string
		wantFound     bool
	}{
		{
			name:          "simple",
			input:         "<chat-title>Greetings</chat-title> rest",
			wantTitle:     "Greetings",
			wantRemainder: " rest",
			wantFound:     true,
		},
		{
			name:          "mid buffer",
			input:         "Hello! <chat-title>Small Talk</chat-title> More text.",
			wantTitle:     "Small Talk",
			wantRemainder: "Hello!  More text.",
			wantFound:     true,
		},
		{
			name:          "trims whitespace",
			input:         "<chat-title>  Padded  </chat-title>",
			wantTitle:     "Padded",
			wantRemainder: "",
			wantFound:     true,
		},
		{
			name:          "non greedy first match",
			input:         "<chat-title>A</chat-title>x<chat-title>B</chat-title>",
			wantTitle:     "A",
			wantRemainder: "x<chat-title>B</chat-title>",
			wantFound:     true,
		},
		{
			name:          "unterminated is not a match",
			input:         "text <chat-title>half a tit",
			wantTitle:     "",
			wantRemainder: "text <chat-title>half a tit",
			wantFound:     false,
		},
		{
			name:          "no tags",
			input:         "plain text",
			wantTitle:     "",
			wantRemainder: "plain text",
			wantFound:     false,
		},
		{
			name:          "empty title",
			input:         "a<chat-title></chat-title>b",
			wantTitle:     "",
			wantRemainder: "ab",
			wantFound:     true,
		},
		{
			name:          "multiline title",
			input:         "<chat-title>Two\nLines</chat-title>",
			wantTitle:     "Two\nLines",
			wantRemainder: "",
			wantFound:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, remainder, found := ExtractTitle(tt.input)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if remainder != tt.wantRemainder {
				t.Errorf("remainder = %q, want %q", remainder, tt.wantRemainder)
			}
		})
	}
}

// Extraction over a buffer that grows delta by delta must yield the title
// exactly once, with the remainder free of tag bytes.
func TestExtractTitleAcrossDeltas(t *testing.T) {
	deltas := []string{"<chat-ti", "tle>Hi</chat-title> rest"}

	var buffer string
	var title string
	found := false
	for _, d := range deltas {
		buffer += d
		if !found {
			var got string
			var ok bool
			got, buffer, ok = ExtractTitle(buffer)
			if ok {
				title = got
				found = true
			}
		}
	}

	if !found || title != "Hi" {
		t.Errorf("title = %q (found=%v), want %q", title, found, "Hi")
	}
	if buffer != " rest" {
		t.Errorf("buffer = %q, want %q", buffer, " rest")
	}
}

func TestExtractTitleIdempotent(t *testing.T) {
	_, remainder, found := ExtractTitle("x<chat-title>T</chat-title>y")
	if !found {
		t.Fatal("first extraction should find the title")
	}

	title2, remainder2, found2 := ExtractTitle(remainder)
	if found2 {
		t.Errorf("second extraction found %q, want none", title2)
	}
	if remainder2 != remainder {
		t.Errorf("second extraction changed remainder: %q -> %q", remainder, remainder2)
	}
}

func TestHoldbackSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		marker   string
		wantHead string
		wantTail string
	}{
		{"no overlap", "hello", "</think>", "hello", ""},
		{"full prefix suffix", "text</thin", "</think>", "text", "</thin"},
		{"single char", "text<", "</think>", "text", "<"},
		{"marker itself not held", "</think>", "</think>", "</think>", ""},
		{"angle mid text not held", "a<b c", "</think>", "a<b c", ""},
		{"empty", "", "</think>", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, tail := HoldbackSplit(tt.text, tt.marker)
			if head != tt.wantHead || tail != tt.wantTail {
				t.Errorf("HoldbackSplit(%q) = (%q, %q), want (%q, %q)",
					tt.text, head, tail, tt.wantHead, tt.wantTail)
			}
		})
	}
}
