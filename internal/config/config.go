// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. The default location is ~/.streamchat/config.toml.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Storage  StorageConfig  `toml:"storage"`
	UI       UIConfig       `toml:"ui"`
}

// ServerConfig configures the chat endpoint server.
type ServerConfig struct {
	// Host to bind. Default binds loopback only.
	Host string `toml:"host"`
	// Port for the HTTP listener.
	Port int `toml:"port"`
	// RateLimit is the per-client request budget in requests per minute.
	// Zero disables rate limiting.
	RateLimit int `toml:"rate_limit"`
}

// ProviderConfig configures the hosted inference provider.
type ProviderConfig struct {
	// Name identifies the provider for key lookup.
	Name string `toml:"name"`
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `toml:"base_url"`
	// GeneralModel answers ordinary chat requests.
	GeneralModel string `toml:"general_model"`
	// ReasoningModel answers requests with reasoning enabled.
	ReasoningModel string `toml:"reasoning_model"`
	// MaxTokens bounds completion length.
	MaxTokens int `toml:"max_tokens"`
	// MaxRetries bounds connection attempts before the first byte.
	MaxRetries int `toml:"max_retries"`
	// TimeoutSecs bounds a whole streaming session. Zero means no
	// timeout beyond cancellation.
	TimeoutSecs int `toml:"timeout_secs"`
}

// StorageConfig configures local persistence paths.
type StorageConfig struct {
	// DatabasePath is the conversation record store.
	DatabasePath string `toml:"database_path"`
	// KeysPath is the encrypted API key store.
	KeysPath string `toml:"keys_path"`
}

// UIConfig configures the terminal interface.
type UIConfig struct {
	// Theme selects the color theme ("dark" or "light").
	Theme string `toml:"theme"`
	// ShowReasoning expands reasoning blocks by default.
	ShowReasoning bool `toml:"show_reasoning"`
	// Markdown renders assistant replies through the markdown renderer.
	Markdown bool `toml:"markdown"`
}

// Timeout returns the session timeout as a duration, zero when unset.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	home := configDir()
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8090,
			RateLimit: 60,
		},
		Provider: ProviderConfig{
			Name:           "openrouter",
			BaseURL:        "https://openrouter.ai/api/v1",
			GeneralModel:   "meta-llama/llama-3.3-70b-instruct",
			ReasoningModel: "deepseek/deepseek-r1",
			MaxTokens:      2048,
			MaxRetries:     3,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(home, "records.db"),
			KeysPath:     filepath.Join(home, "keys.json"),
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
	}
}

// configDir returns the application config directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".streamchat")
	}
	return filepath.Join(home, ".streamchat")
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(configDir(), "config.toml")
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config from the default path, layered over defaults
// and under environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFromPath(Path())
}

// LoadFromPath reads the config from an explicit path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables over file values.
//
// Recognized variables:
//   - STREAMCHAT_BASE_URL: overrides provider.base_url
//   - STREAMCHAT_GENERAL_MODEL: overrides provider.general_model
//   - STREAMCHAT_REASONING_MODEL: overrides provider.reasoning_model
//   - STREAMCHAT_HOST, STREAMCHAT_PORT: override server binding
//   - STREAMCHAT_DB: overrides storage.database_path
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STREAMCHAT_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("STREAMCHAT_GENERAL_MODEL"); v != "" {
		c.Provider.GeneralModel = v
	}
	if v := os.Getenv("STREAMCHAT_REASONING_MODEL"); v != "" {
		c.Provider.ReasoningModel = v
	}
	if v := os.Getenv("STREAMCHAT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("STREAMCHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("STREAMCHAT_DB"); v != "" {
		c.Storage.DatabasePath = v
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url must be set")
	}
	if c.Provider.GeneralModel == "" {
		return fmt.Errorf("provider general_model must be set")
	}
	if c.Provider.MaxTokens < 1 {
		return fmt.Errorf("provider max_tokens must be positive, got %d", c.Provider.MaxTokens)
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider max_retries must be positive, got %d", c.Provider.MaxRetries)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the config to the default path.
func Save(cfg *Config) error {
	return SaveToPath(cfg, Path())
}

// SaveToPath writes the config as TOML to an explicit path.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
