// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command nexus is the NEXUS chat engine: a local AI assistant on top of
// Ollama with intent-based model routing and durable conversation history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nexus/internal/config"
	"github.com/jeranaias/nexus/internal/logging"
	"github.com/jeranaias/nexus/internal/storage"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "NEXUS - local AI chat engine with model routing",
	Long: `NEXUS is a local AI chat engine built on Ollama.

Queries are classified by intent (code, research, planning, quick) and
routed through a configurable model registry. Conversations are stored
in SQLite with full-text search, and an HTTP API serves streaming chat
to clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.nexus/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the config file, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.Log.Level)
}

// openStore opens the conversation store at the configured path.
func openStore(cfg *config.Config, log *logging.Logger) (*storage.Store, error) {
	return storage.Open(cfg.Storage.DBPath, log)
}
