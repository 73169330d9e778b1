// Package cmd wires the slidemanager daemon's cobra command tree: "serve"
// (HTTP API + job manager) and "worker" (headless job manager only).
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slidemanaged",
	Short: "Local slide-library indexing daemon",
	Long: `slidemanaged builds and maintains a persistent, incrementally-updatable
index of a presentation library: normalized text, full-text search tokens,
thumbnails, and text/image embedding vectors, exposed over a local HTTP
control/observation API for a separate desktop client.`,
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
}
