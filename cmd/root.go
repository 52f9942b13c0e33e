// Package cmd provides the gambit CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply database migrations and exit
//   - version: build information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gambitlabs/gambit/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "gambit",
	Short: "Gambit - chess analysis chat service",
	Long: `Gambit is an AI chess analysis service backed by Chess.com data
and a pgvector knowledge base. Run "gambit serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG=1 lowers the level.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: true})
}
