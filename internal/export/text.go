// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter renders conversations as plain text for pagers and
// grep.
type TextExporter struct {
	options *Options
}

// Export converts a conversation to plain text.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	messages := transcriptMessages(conv)
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString(conv.GetTitle() + "\n")
		sb.WriteString(strings.Repeat("=", len(conv.GetTitle())) + "\n")
		sb.WriteString(fmt.Sprintf("Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("Messages: %d\n\n", len(messages)))
	}

	for _, msg := range messages {
		sb.WriteString(fmt.Sprintf("[%s] %s\n",
			msg.Timestamp.Format("15:04:05"),
			roleLabel(msg.Role)))

		if e.options.IncludeReasoning && !msg.Reasoning.IsEmpty() {
			sb.WriteString("  (reasoning)\n")
			for _, line := range strings.Split(msg.Reasoning.Content, "\n") {
				sb.WriteString("  | " + line + "\n")
			}
		}

		sb.WriteString(msg.Content + "\n")
		if msg.Truncated {
			sb.WriteString("[response truncated]\n")
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".txt".
func (e *TextExporter) FileExtension() string {
	return ".txt"
}
