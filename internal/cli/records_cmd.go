// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// records_cmd.go - Saved conversation management for streamchat.
//
// Command: records
//
// Examples:
//   streamchat records list           List saved conversations
//   streamchat records show <id>      Print a conversation transcript
//   streamchat records delete <id>    Delete a conversation
//   streamchat records clear          Delete all conversations
//   streamchat records export <id> --format md|json|txt [--output DIR]
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/export"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// listTitleWidth caps conversation titles in listings so one runaway
// title cannot wreck the column layout.
const listTitleWidth = 48

// HandleRecords dispatches the "records" subcommands against the
// record store.
func HandleRecords(args Args, store *storage.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch args.Subcommand {
	case "list", "ls", "":
		return recordsList(ctx, store)
	case "show":
		if len(args.Raw) < 2 {
			return errors.New("usage: streamchat records show <id>")
		}
		return recordsShow(ctx, store, args.Raw[1])
	case "delete", "rm":
		if len(args.Raw) < 2 {
			return errors.New("usage: streamchat records delete <id>")
		}
		return recordsDelete(ctx, store, args.Raw[1])
	case "export":
		if len(args.Raw) < 2 {
			return errors.New("usage: streamchat records export <id> [--format md|json|txt] [--output DIR]")
		}
		return recordsExport(ctx, store, args.Raw[1], args.Raw[2:])
	case "clear":
		return recordsClear(ctx, store)
	default:
		return fmt.Errorf("unknown records subcommand: %s", args.Subcommand)
	}
}

func recordsList(ctx context.Context, store *storage.Store) error {
	metas, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println(infoStyle.Render("[No saved conversations]"))
		return nil
	}

	fmt.Println(headerStyle.Render("Saved Conversations"))
	for _, meta := range metas {
		fmt.Printf("  %s  %s %s\n",
			commandStyle.Render(meta.ID),
			util.PadRight(util.TruncateWidth(meta.Title, listTitleWidth), listTitleWidth),
			infoStyle.Render(fmt.Sprintf("(%d messages, %s)",
				meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))))
	}
	return nil
}

func recordsShow(ctx context.Context, store *storage.Store, id string) error {
	conv, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	title := util.TruncateWidth(conv.GetTitle(), listTitleWidth)
	fmt.Println(headerStyle.Render(title))
	fmt.Println(infoStyle.Render(strings.Repeat("─", util.StringWidth(title))))
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleSystem || msg.Role == model.RoleData {
			continue
		}
		label := "You"
		if msg.Role == model.RoleAssistant {
			label = "Assistant"
		}
		fmt.Printf("\n%s\n%s\n", promptStyle.Render(label), msg.Content)
		if msg.Truncated {
			fmt.Println(warningStyle.Render("... response truncated"))
		}
	}
	return nil
}

// recordsExport writes a conversation to a file in the chosen format.
func recordsExport(ctx context.Context, store *storage.Store, id string, flags []string) error {
	format := "md"
	opts := export.DefaultOptions()

	for i := 0; i < len(flags); i++ {
		switch {
		case flags[i] == "--format" && i+1 < len(flags):
			format = flags[i+1]
			i++
		case strings.HasPrefix(flags[i], "--format="):
			format = strings.TrimPrefix(flags[i], "--format=")
		case flags[i] == "--output" && i+1 < len(flags):
			opts.OutputDir = flags[i+1]
			i++
		case strings.HasPrefix(flags[i], "--output="):
			opts.OutputDir = strings.TrimPrefix(flags[i], "--output=")
		case flags[i] == "--no-reasoning":
			opts.IncludeReasoning = false
		}
	}

	conv, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	exporter, err := export.New(format, opts)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s Exported to %s\n", commandStyle.Render("[OK]"), path)
	return nil
}

func recordsDelete(ctx context.Context, store *storage.Store, id string) error {
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("%s Deleted %s\n", commandStyle.Render("[OK]"), id)
	return nil
}

func recordsClear(ctx context.Context, store *storage.Store) error {
	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println(infoStyle.Render("[Nothing to clear]"))
		return nil
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Printf("%s Deleted %d conversations\n", commandStyle.Render("[OK]"), count)
	return nil
}
