// Package server hosts the HTTP status API: job queries, health, and
// version endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/jobscope/internal/observability"
	"github.com/3leaps/jobscope/internal/server/handlers"
	"github.com/3leaps/jobscope/internal/server/middleware"
	"github.com/3leaps/jobscope/pkg/provider"
	"github.com/3leaps/jobscope/pkg/query"
)

// Options configures a Server beyond its listen address.
type Options struct {
	// Engine serves job queries. Required for /v1/jobs.
	Engine *query.Engine

	// Providers are the engine's backends, used for health checks and
	// the response summary.
	Providers []provider.Provider

	// Version is the build metadata reported by /version and /healthz.
	Version handlers.VersionInfo

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP status server.
type Server struct {
	host   string
	port   int
	opts   Options
	router chi.Router
	http   *http.Server
}

// New builds a server with all routes registered.
func New(host string, port int, opts Options) *Server {
	s := &Server{host: host, port: port, opts: opts}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	health := handlers.NewHealthManager(s.opts.Version.Version)
	for _, p := range s.opts.Providers {
		health.RegisterChecker(p.Type().String(), providerChecker{p: p})
	}

	r.Get("/healthz", health.HealthHandler)
	r.Get("/healthz/live", health.LivenessHandler)
	r.Method(http.MethodGet, "/version", handlers.NewVersionHandler(s.opts.Version))

	if s.opts.Engine != nil {
		r.Method(http.MethodGet, "/v1/jobs",
			handlers.NewJobsHandler(s.opts.Engine, len(s.opts.Providers)))
	}

	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts
// down gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("Status server listening",
			zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	observability.CLILogger.Info("Status server stopped")
	return nil
}

// providerChecker probes a backend with a describe of one id that can
// never exist. Unknown ids are skipped rather than errors, so a healthy
// backend answers with an empty result after one cheap round trip.
type providerChecker struct {
	p provider.Provider
}

func (c providerChecker) CheckHealth(ctx context.Context) error {
	_, err := c.p.Describe(ctx, []string{"healthz-probe"})
	return err
}
