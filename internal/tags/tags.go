// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tags defines the in-band marker conventions used between the
// chat endpoint and its consumers: the reasoning block markers a
// reasoning model wraps its chain-of-thought in, and the title block the
// model is asked to emit on the first exchange of a conversation.
package tags

import (
	"regexp"
	"strings"
)

// =============================================================================
// MARKERS
// =============================================================================

const (
	// ThinkOpen and ThinkClose delimit a reasoning block inside raw
	// model output.
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"

	// TitleOpen and TitleClose delimit the conversation title the model
	// is instructed to emit at the end of its first reply.
	TitleOpen  = "<chat-title>"
	TitleClose = "</chat-title>"
)

// titlePattern matches the first complete title block, non-greedy so a
// stray closing tag later in the text cannot widen the capture.
// (?s) lets a title span line breaks the model may emit.
var titlePattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(TitleOpen) + `(.*?)` + regexp.QuoteMeta(TitleClose))

// =============================================================================
// TITLE EXTRACTION
// =============================================================================

// ExtractTitle finds the first complete title block in text. It returns
// the trimmed title, the text with exactly that block removed, and
// whether a block was found. An unterminated open tag is not a match and
// not an error; the caller simply tries again when more text arrives.
// Running ExtractTitle over its own remainder output with found=false is
// the common case, which makes repeated calls on a growing buffer safe.
func ExtractTitle(text string) (title, remainder string, found bool) {
	loc := titlePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}

	title = strings.TrimSpace(text[loc[2]:loc[3]])
	remainder = text[:loc[0]] + text[loc[1]:]
	return title, remainder, true
}

// =============================================================================
// MARKER SCANNING
// =============================================================================

// HoldbackSplit splits text into an emittable head and a tail that must
// be held back because it could be the beginning of marker, split across
// stream fragments. The tail is the longest suffix of text that is a
// proper prefix of marker.
func HoldbackSplit(text, marker string) (head, tail string) {
	max := len(marker) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(marker, text[len(text)-n:]) {
			return text[:len(text)-n], text[len(text)-n:]
		}
	}
	return text, ""
}
