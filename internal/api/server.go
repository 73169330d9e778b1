// Package api exposes the indexing daemon's HTTP control/observation
// surface: job lifecycle (create/pause/resume/cancel), job snapshots, an
// SSE event stream, and read-only library queries (summary/files/pages).
// The API layer never mutates catalog state itself; every write goes
// through the job manager.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/eventbus"
)

// Manager is the subset of jobmanager.Manager the HTTP layer drives. Kept
// as a narrow interface so handler tests can substitute a fake.
type Manager interface {
	CreateJob(ctx context.Context, opts catalog.JobOptions) (string, error)
	PauseJob(ctx context.Context, jobID string) error
	ResumeJob(ctx context.Context, jobID string) error
	CancelJob(ctx context.Context, jobID string) error
}

// Server is the daemon's HTTP surface: one chi router bound to a Store, a
// Bus, and a Manager, all scoped to a single library root.
type Server struct {
	store       *catalog.Store
	bus         *eventbus.Bus
	mgr         Manager
	libraryRoot string
	log         *slog.Logger

	router     *chi.Mux
	httpServer *http.Server
}

// New builds the router and wraps it in an *http.Server bound to addr
// ("host:port"). SSE responses need to stream indefinitely, so the server's
// write timeout is left at zero and each handler is responsible for bailing
// out via request context cancellation instead.
func New(store *catalog.Store, bus *eventbus.Bus, mgr Manager, libraryRoot, addr string, log *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		store:       store,
		bus:         bus,
		mgr:         mgr,
		libraryRoot: libraryRoot,
		log:         log,
		router:      r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsLoopback)

	s.routes()

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info("starting HTTP API", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting HTTP API: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests (including SSE streams,
// which unblock on ctx cancellation).
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
