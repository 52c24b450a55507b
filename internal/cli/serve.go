// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Standalone chat endpoint server for streamchat.
//
// Command: serve
//
// Runs the same /api/chat server the TUI embeds, bound to the
// configured host and port, with graceful shutdown on SIGINT/SIGTERM.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/keys"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/server"
)

// shutdownGrace bounds how long in-flight streams get to finish after
// a termination signal.
const shutdownGrace = 10 * time.Second

// NewProviderClient builds the upstream client from config. The key
// store is consulted per request, so a key granted while the server is
// running takes effect without a restart; the STREAMCHAT_API_KEY
// environment variable overrides the store when set.
func NewProviderClient(cfg *config.Config, keyStore keys.Resolver) *provider.Client {
	return provider.New(provider.Config{
		BaseURL:    cfg.Provider.BaseURL,
		Provider:   cfg.Provider.Name,
		APIKey:     os.Getenv("STREAMCHAT_API_KEY"),
		Keys:       keyStore,
		MaxTokens:  cfg.Provider.MaxTokens,
		MaxRetries: cfg.Provider.MaxRetries,
	})
}

// HandleServe runs the chat endpoint server until interrupted.
func HandleServe(args Args, cfg *config.Config, keyStore keys.Resolver) error {
	client := NewProviderClient(cfg, keyStore)
	srv := server.NewServer(cfg, client)

	// Watch the config file so model changes can be picked up with a
	// restart instead of silently serving stale settings.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	configPath := args.ConfigPath
	if configPath == "" {
		configPath = config.Path()
	}
	go func() {
		err := config.Watch(watchCtx, configPath, func(next *config.Config) {
			log.Printf("CONFIG_CHANGED | path=%s general_model=%s reasoning_model=%s (restart to apply)",
				configPath, next.Provider.GeneralModel, next.Provider.ReasoningModel)
		})
		if err != nil && watchCtx.Err() == nil {
			log.Printf("CONFIG_WATCH_FAILED | error=%v", err)
		}
	}()

	if !args.Quiet {
		fmt.Printf("%s listening on http://%s\n",
			commandStyle.Render("[streamchat]"), srv.Addr())
		if !client.IsConfigured() {
			fmt.Println(warningStyle.Render(
				"[Warning] no API key configured; requests will fail (run: streamchat keys set)"))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Printf("SHUTDOWN | signal=%s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
