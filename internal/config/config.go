// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for paichat.
//
// Configuration is TOML with environment variable overrides, in order of
// precedence:
//   - PAICHAT_* environment variables
//   - ~/.paichat/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/paichat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete paichat configuration.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// History settings
	History HistoryConfig `toml:"history"`

	// UI settings
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains backend connection settings.
type ServerConfig struct {
	// BaseURL is the root of the PAI backend, e.g. "https://api.example.com".
	BaseURL string `toml:"base_url"`
	// RequestTimeoutSecs bounds non-streaming requests.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// Streaming enables the SSE send path instead of single-body responses.
	Streaming bool `toml:"streaming"`
}

// HistoryConfig contains history and local cache settings.
type HistoryConfig struct {
	// PageSize is how many session summaries to request per history page.
	PageSize int `toml:"page_size"`
	// CachePath is the sqlite offline cache location (empty = default).
	CachePath string `toml:"cache_path"`
	// CacheEnabled toggles write-through of settled conversations.
	CacheEnabled bool `toml:"cache_enabled"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Markdown enables glamour rendering of assistant messages.
	Markdown bool `toml:"markdown"`
	// SidebarWidth is the conversation list width in columns.
	SidebarWidth int `toml:"sidebar_width"`
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

var (
	ErrNoBaseURL      = errors.New("server.base_url is not configured")
	ErrInvalidBaseURL = errors.New("server.base_url is not a valid http(s) URL")
)

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RequestTimeoutSecs: 30,
			Streaming:          true,
		},
		History: HistoryConfig{
			PageSize:     30,
			CacheEnabled: true,
		},
		UI: UIConfig{
			Markdown:     true,
			SidebarWidth: 32,
		},
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Server.BaseURL)
	}
	if c.Server.RequestTimeoutSecs <= 0 {
		c.Server.RequestTimeoutSecs = 30
	}
	if c.History.PageSize <= 0 {
		c.History.PageSize = 30
	}
	if c.UI.SidebarWidth < 16 {
		c.UI.SidebarWidth = 16
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Dir returns the paichat configuration directory (~/.paichat).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".paichat"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration from the default location, applying defaults
// and environment overrides. A missing file is not an error; callers decide
// when a valid base URL is required via Validate.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies PAICHAT_* environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("PAICHAT_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("PAICHAT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.RequestTimeoutSecs = n
		}
	}
	if v := os.Getenv("PAICHAT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.History.PageSize = n
		}
	}
	if v := os.Getenv("PAICHAT_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.Streaming = b
		}
	}
	if v := os.Getenv("PAICHAT_CACHE_PATH"); v != "" {
		c.History.CachePath = v
	}
}

// Save writes the configuration to the default location atomically.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit path atomically.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// CacheDBPath resolves the offline cache path, falling back to the default
// under the config directory.
func (c *Config) CacheDBPath() (string, error) {
	if c.History.CachePath != "" {
		return c.History.CachePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}
