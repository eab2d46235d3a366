package main

import (
	"fmt"
	"os"

	"github.com/benvon/assistant-chat/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "assistant-chat-configure",
		Short: "Configuration tool for Assistant Chat",
		Long:  "CLI tool for managing assistants, user profiles and the database schema",
	}

	rootCmd.AddCommand(commands.NewAssistantCmd())
	rootCmd.AddCommand(commands.NewProfileCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
