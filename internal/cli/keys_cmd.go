// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// keys_cmd.go - Stored API key management for streamchat.
//
// Command: keys
//
// Examples:
//   streamchat keys set               Prompt for the default provider's key
//   streamchat keys set openrouter    Prompt for a specific provider's key
//   streamchat keys list              List providers with a stored key
//   streamchat keys delete openrouter Remove a stored key
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
)

// HandleKeys dispatches the "keys" subcommands against the key store.
func HandleKeys(args Args, cfg *config.Config, store *keys.Store) error {
	provider := cfg.Provider.Name
	if len(args.Raw) > 1 {
		provider = args.Raw[1]
	}

	switch args.Subcommand {
	case "set", "":
		return keysSet(store, provider)
	case "list", "ls":
		return keysList(store)
	case "delete", "rm":
		if len(args.Raw) < 2 {
			return errors.New("usage: streamchat keys delete <provider>")
		}
		return keysDelete(store, provider)
	default:
		return fmt.Errorf("unknown keys subcommand: %s", args.Subcommand)
	}
}

// keysSet prompts for a key with echo disabled and stores it.
func keysSet(store *keys.Store, provider string) error {
	if err := requireTTY("enter an API key"); err != nil {
		return err
	}

	key, err := ReadPassword(fmt.Sprintf("API key for %s: ", provider))
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty key, nothing stored")
	}

	if err := store.Set(provider, key); err != nil {
		return err
	}
	fmt.Printf("%s Stored key for %s\n", commandStyle.Render("[OK]"), provider)
	return nil
}

// keysList prints providers that have a stored key. Key material is
// never printed.
func keysList(store *keys.Store) error {
	providers := store.Providers()
	if len(providers) == 0 {
		fmt.Println(infoStyle.Render("[No stored keys]"))
		return nil
	}

	fmt.Println(headerStyle.Render("Stored Keys"))
	for _, p := range providers {
		fmt.Printf("  %s\n", commandStyle.Render(p))
	}
	return nil
}

func keysDelete(store *keys.Store, provider string) error {
	if err := store.Delete(provider); err != nil {
		return err
	}
	fmt.Printf("%s Deleted key for %s\n", commandStyle.Render("[OK]"), provider)
	return nil
}

// requireTTY fails a command that needs interactive input when stdin
// is not a terminal.
func requireTTY(operation string) error {
	if !IsTTY() {
		return fmt.Errorf("stdin is not a terminal; cannot %s interactively", operation)
	}
	return nil
}
