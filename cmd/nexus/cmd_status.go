// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nexus/internal/engine"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modelsCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend reachability and model availability",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng := engine.New(cfg, nil, nil)
	status := eng.CheckStatus(cmd.Context())

	fmt.Printf("Backend:  %s\n", cfg.Ollama.BaseURL)
	fmt.Printf("Status:   %s\n", status.Status)

	if status.Status != engine.StatusOnline {
		if status.Message != "" {
			fmt.Printf("Detail:   %s\n", status.Message)
		}
		return nil
	}

	keys := make([]string, 0, len(status.ModelsAvailable))
	for key := range status.ModelsAvailable {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println("\nConfigured models:")
	for _, key := range keys {
		mark := "missing"
		if status.ModelsAvailable[key] {
			mark = "available"
		}
		fmt.Printf("  %-12s %-24s %s\n", key, cfg.Ollama.Models[key].Name, mark)
	}

	return nil
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the configured model registry",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng := engine.New(cfg, nil, nil)
	for _, m := range eng.Router().Models() {
		fmt.Printf("%-12s %-24s %-12s %s\n", m.Key, m.Name, m.Role, m.UseFor)
	}

	return nil
}
