// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for streamchat CLI commands.
//
// Colors are disabled automatically for non-TTY output and when
// NO_COLOR is set.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// init configures the lipgloss color profile from terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// promptStyle renders the REPL prompt.
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// welcomeStyle renders the banner line.
	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	// infoStyle renders secondary information.
	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// commandStyle renders command names and confirmations.
	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	// warningStyle renders warnings.
	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// errorStyle renders errors.
	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// reasoningStyle renders streamed reasoning text.
	reasoningStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)

	// headerStyle renders listing headers.
	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)
)
