package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/config"
	"github.com/allanyiin/slidemanager/internal/eventbus"
	"github.com/allanyiin/slidemanager/internal/jobmanager"
	"github.com/allanyiin/slidemanager/internal/logging"
)

// workerCmd is the headless counterpart to serve: it opens the same
// catalog database and starts the same watchdog sweep, but exposes no HTTP
// surface. A standalone process that keeps the watchdog alive for a
// library whose jobs are created by some other process sharing the same
// database file.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job manager's watchdog without an HTTP API",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("library-root", "", "Root directory of the presentation library to index (required)")
	_ = workerCmd.MarkFlagRequired("library-root")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	libraryRoot := mustGetString(cmd, "library-root")

	if err := logging.Init(libraryRoot); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log := slog.Default()

	cfg := config.Load()

	store, err := catalog.Open(libraryRoot)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	bus := eventbus.New()
	mgr := jobmanager.New(store, bus, libraryRoot, cfg.OpenAI.APIKey, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartWatchdog(ctx)

	log.Info("worker ready", "library_root", libraryRoot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("worker stopped")
	return nil
}
