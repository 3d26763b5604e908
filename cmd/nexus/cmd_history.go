// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 50, "maximum results")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage conversation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		convs, err := store.ListConversations(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}

		for _, c := range convs {
			fmt.Printf("%6d  %-50s  %3d msgs  %s\n",
				c.ID, c.Title, c.MessageCount, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		fmt.Printf("# %s\n\n", conv.Title)
		for _, msg := range conv.Messages {
			fmt.Printf("[%s] %s\n%s\n\n",
				msg.Role, msg.Timestamp.Format("15:04:05"), msg.Content)
		}
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search across all conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.SearchConversations(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		for _, c := range results {
			fmt.Printf("%6d  %-50s  %s\n",
				c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if err := store.DeleteConversation(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %d.\n", id)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("History cleared.")
		return nil
	},
}
