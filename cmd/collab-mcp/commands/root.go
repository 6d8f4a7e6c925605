// Package commands provides the CLI commands for collab-mcp.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "collab-mcp",
	Short: "MCP server for real-time Jupyter collaboration",
	Long: `collab-mcp exposes real-time notebook and document collaboration to
AI agents over the Model Context Protocol: JSON-RPC over HTTP POST and
resumable server-sent-event streams over GET.

Run 'collab-mcp serve' to start the server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("collab-mcp %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
