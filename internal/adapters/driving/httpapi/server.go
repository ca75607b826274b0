// Package httpapi serves the activity log over HTTP with chi.
//
// Every request runs inside its own batch scope, so aggregate lookups made
// while rendering one response collapse into one datastore query per kind.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// Ports aggregates the driving ports the API calls into.
type Ports struct {
	Runner     driving.IngestRunner
	Registry   driving.IdentityRegistry
	Activities driving.ActivityService
	Summaries  driving.SummaryService
	Aggregates driving.AggregateService
	Tracker    driving.SnapshotTracker
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Runner == nil:
		return errors.New("httpapi: ingest runner is required")
	case p.Registry == nil:
		return errors.New("httpapi: identity registry is required")
	case p.Activities == nil, p.Summaries == nil, p.Aggregates == nil:
		return errors.New("httpapi: query services are required")
	case p.Tracker == nil:
		return errors.New("httpapi: snapshot tracker is required")
	}
	return nil
}

// Server is the HTTP query API.
type Server struct {
	ports    *Ports
	settings domain.ServerSettings
	router   chi.Router
}

// NewServer creates a server and mounts its routes.
func NewServer(ports *Ports, settings domain.ServerSettings) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = domain.DefaultAppSettings().Server.ShutdownTimeout
	}
	s := &Server{ports: ports, settings: settings}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContext)
	r.Use(instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(batchScope)

		r.Post("/events", s.handleIngest)
		r.Get("/activities", s.handleActivities)
		r.Get("/people/summary", s.handleSummaries)
		r.Post("/identifiers", s.handleBind)
		r.Get("/resolve", s.handleResolve)
		r.Get("/unresolved", s.handleUnresolved)
		r.Post("/documents/{documentID}/observations", s.handleObserve)
	})
	return r
}

// Run listens on the configured address until ctx is cancelled, then
// drains in-flight requests for at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info().Str("addr", s.settings.Addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http api shutdown: %w", err)
	}
	return nil
}
