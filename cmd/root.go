// Package cmd provides the CLI commands for phonewise.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - chat: interactive terminal client against a running server
//   - version: build and configuration information
//
// Running phonewise with no subcommand starts the interactive client.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "phonewise",
	Short: "Conversational phone catalog assistant",
	Long: `Phonewise answers natural-language questions about a phone catalog.

It ships a server that pairs an LLM with catalog search tools and streams
progress over SSE, and a terminal client for talking to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
