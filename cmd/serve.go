package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allanyiin/slidemanager/internal/api"
	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/config"
	"github.com/allanyiin/slidemanager/internal/eventbus"
	"github.com/allanyiin/slidemanager/internal/jobmanager"
	"github.com/allanyiin/slidemanager/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the indexing daemon's HTTP API and job manager",
	Long: `serve opens (or creates) the catalog database under
<library-root>/.slidemanager/, starts the job manager's watchdog, and
exposes the control/observation HTTP API for a desktop client to drive
indexing jobs against.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("library-root", "", "Root directory of the presentation library to index (required)")
	serveCmd.Flags().String("host", "", "Override APP_BACKEND_HOST")
	serveCmd.Flags().Int("port", 0, "Override APP_BACKEND_PORT")

	_ = serveCmd.MarkFlagRequired("library-root")
}

func runServe(cmd *cobra.Command, _ []string) error {
	libraryRoot := mustGetString(cmd, "library-root")

	if err := logging.Init(libraryRoot); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log := slog.Default()

	cfg := config.Load()
	host := cfg.Server.Host
	if override := mustGetString(cmd, "host"); override != "" {
		host = override
	}
	port := cfg.Server.Port
	if override := mustGetInt(cmd, "port"); override != 0 {
		port = override
	}

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

	addr := fmt.Sprintf("%s:%d", host, port)
	server := api.New(store, bus, mgr, libraryRoot, addr, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
		cancel()
	}()

	log.Info("indexing daemon ready", "library_root", libraryRoot, "addr", addr)
	return server.Start()
}
