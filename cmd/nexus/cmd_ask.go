// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nexus/internal/engine"
	"github.com/jeranaias/nexus/internal/storage"
)

var (
	askNoSave  bool
	askNoStats bool
)

func init() {
	askCmd.Flags().BoolVar(&askNoSave, "no-save", false, "do not persist the exchange to history")
	askCmd.Flags().BoolVar(&askNoStats, "quiet", false, "suppress the model info line")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Ask a single question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	var store *storage.Store
	if !askNoSave {
		store, err = openStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	eng := engine.New(cfg, store, log)

	var failed string
	for ev := range eng.Generate(cmd.Context(), query) {
		switch ev.Type {
		case engine.EventModelSelected:
			if !askNoStats {
				fmt.Fprintf(os.Stderr, "[%s | %s]\n", ev.Model, ev.TaskType)
			}
		case engine.EventContent:
			fmt.Print(ev.Content)
		case engine.EventComplete:
			fmt.Println()
		case engine.EventError:
			failed = ev.Error
		}
	}

	if failed != "" {
		return fmt.Errorf("generation failed: %s", failed)
	}
	return cmd.Context().Err()
}
