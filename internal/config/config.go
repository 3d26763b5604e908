// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// ERRORS
// =============================================================================

// Error describes an invalid or missing configuration value.
// Configuration errors are fatal: callers are expected to abort startup.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return "config: " + e.Field + ": " + e.Reason
}

// IsConfigError reports whether err is a configuration validation error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nexus configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Ollama backend configuration
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Agent generation parameters
	Agent AgentConfig `toml:"agent" json:"agent"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// HTTP server configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// OllamaConfig contains the inference backend configuration.
type OllamaConfig struct {
	// BaseURL is the Ollama server URL.
	// Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	BaseURL string `toml:"base_url" json:"base_url"`

	// Models is the registry of selectable models, keyed by logical name.
	// The entry under "default" is the one the router returns.
	Models map[string]ModelEntry `toml:"models" json:"models"`
}

// ModelEntry describes one selectable backend model.
type ModelEntry struct {
	// Name is the backend model identifier (e.g. "llama3.1:8b").
	Name string `toml:"name" json:"name"`
	// Role is a short human-readable role ("generalist", "coder", ...).
	Role string `toml:"role" json:"role"`
	// UseFor describes what the model is advertised for.
	UseFor string `toml:"use_for" json:"use_for"`
}

// AgentConfig contains generation parameters.
type AgentConfig struct {
	// Temperature for generation. Valid range 0.0-2.0.
	Temperature float64 `toml:"temperature" json:"temperature"`

	// GenerateTimeoutSecs bounds a single generation call. Generation is
	// unbounded in length, so this defaults to minutes, not seconds.
	GenerateTimeoutSecs int `toml:"generate_timeout_secs" json:"generate_timeout_secs"`

	// ProbeTimeoutSecs bounds the backend availability probe.
	ProbeTimeoutSecs int `toml:"probe_timeout_secs" json:"probe_timeout_secs"`

	// ContextWindow is the number of recent messages sent with each prompt.
	ContextWindow int `toml:"context_window" json:"context_window"`
}

// StorageConfig contains conversation store configuration.
type StorageConfig struct {
	// DBPath is the SQLite database path (empty = ~/.nexus/history.db).
	DBPath string `toml:"db_path" json:"db_path"`
}

// ServerConfig contains HTTP API server configuration.
type ServerConfig struct {
	// Addr is the listen address for the API server.
	Addr string `toml:"addr" json:"addr"`
	// RateLimitRPS is the per-client request rate (0 = disabled).
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	// RateLimitBurst is the per-client burst allowance.
	RateLimitBurst int `toml:"rate_limit_burst" json:"rate_limit_burst"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Ollama: OllamaConfig{
			BaseURL: "http://127.0.0.1:11434",
			Models: map[string]ModelEntry{
				"default": {
					Name:   "llama3.1:8b",
					Role:   "generalist",
					UseFor: "conversation, reasoning, and code",
				},
			},
		},

		Agent: AgentConfig{
			Temperature:         0.7,
			GenerateTimeoutSecs: 120,
			ProbeTimeoutSecs:    5,
			ContextWindow:       10,
		},

		Storage: StorageConfig{
			DBPath: "", // resolved to ~/.nexus/history.db at load time
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the nexus configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nexus"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last, before validation.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := PathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, &Error{Field: path, Reason: err.Error()}
			}
			return finish(cfg)
		}
	}

	if path, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, &Error{Field: path, Reason: err.Error()}
			}
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Field: path, Reason: err.Error()}
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Field: path, Reason: err.Error()}
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, &Error{Field: path, Reason: err.Error()}
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, &Error{Field: path, Reason: err.Error()}
		}
	}

	return finish(cfg)
}

// finish applies env overrides, fills defaults, and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies NEXUS_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NEXUS_OLLAMA_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("NEXUS_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("NEXUS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NEXUS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NEXUS_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Agent.Temperature = f
		}
	}
	if v := os.Getenv("NEXUS_DEFAULT_MODEL"); v != "" {
		m := c.Ollama.Models["default"]
		m.Name = v
		if c.Ollama.Models == nil {
			c.Ollama.Models = map[string]ModelEntry{}
		}
		c.Ollama.Models["default"] = m
	}
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if len(c.Ollama.Models) == 0 {
		c.Ollama.Models = defaults.Ollama.Models
	}
	// Temperature is not zero-filled here: 0.0 is a valid setting
	// (greedy decoding) and the load paths seed from Default() anyway.
	if c.Agent.GenerateTimeoutSecs == 0 {
		c.Agent.GenerateTimeoutSecs = defaults.Agent.GenerateTimeoutSecs
	}
	if c.Agent.ProbeTimeoutSecs == 0 {
		c.Agent.ProbeTimeoutSecs = defaults.Agent.ProbeTimeoutSecs
	}
	if c.Agent.ContextWindow == 0 {
		c.Agent.ContextWindow = defaults.Agent.ContextWindow
	}
	if c.Storage.DBPath == "" {
		if dir, err := Dir(); err == nil {
			c.Storage.DBPath = filepath.Join(dir, "history.db")
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = defaults.Server.RateLimitBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for invalid values.
// Returns a *Error describing the first problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Ollama.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Field: "ollama.base_url", Reason: "must be a valid http(s) URL"}
	}

	if len(c.Ollama.Models) == 0 {
		return &Error{Field: "ollama.models", Reason: "at least one model entry is required"}
	}
	for key, m := range c.Ollama.Models {
		if m.Name == "" {
			return &Error{Field: "ollama.models." + key + ".name", Reason: "model name is required"}
		}
	}

	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return &Error{Field: "agent.temperature", Reason: "must be between 0.0 and 2.0"}
	}
	if c.Agent.GenerateTimeoutSecs <= 0 {
		return &Error{Field: "agent.generate_timeout_secs", Reason: "must be positive"}
	}
	if c.Agent.ProbeTimeoutSecs <= 0 {
		return &Error{Field: "agent.probe_timeout_secs", Reason: "must be positive"}
	}
	if c.Agent.ContextWindow <= 0 {
		return &Error{Field: "agent.context_window", Reason: "must be positive"}
	}

	if c.Server.RateLimitRPS < 0 {
		return &Error{Field: "server.rate_limit_rps", Reason: "must not be negative"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Field: "log.level", Reason: "must be one of debug, info, warn, error"}
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# nexus configuration file")
	fmt.Fprintln(file, "# Generated by nexus - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
