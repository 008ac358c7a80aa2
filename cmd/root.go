// Package cmd implements the assistant command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Support chat assistant backend",
	Long: `assistant serves the AI support chat backend: a streaming chat
endpoint backed by a semantic FAQ index, a similarity-keyed response
cache, and a multi-provider completion fallback chain.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
