// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nexus/internal/export"
)

var (
	exportFormat string
	exportDir    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "export format (markdown, json)")
	exportCmd.Flags().StringVar(&exportDir, "out", ".", "output directory")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a conversation to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := store.GetConversation(cmd.Context(), id)
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = exportDir

	exporter, err := export.ForFormat(exportFormat, opts)
	if err != nil {
		return err
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Exported to %s\n", path)
	return nil
}
