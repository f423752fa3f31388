// Package server exposes the pipeline over HTTP: run execution, a
// health probe backed by the record store, and Prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
)

// shutdownTimeout bounds how long Start waits for in-flight requests
// once its context is cancelled.
const shutdownTimeout = 10 * time.Second

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Capabilities are the pipeline dependencies shared by every run the
// server executes. Nil members restrict which run modes a request may
// ask for, mirroring the pipeline's constructor rules.
type Capabilities struct {
	Source pipeline.RecordSource
	Sender pipeline.Sender
	Writer pipeline.RecordWriter
}

type Server struct {
	Router *chi.Mux

	addr   string
	logger *slog.Logger
	base   pipeline.Config
	caps   Capabilities
	pinger Pinger
}

// New assembles the HTTP surface. The base config supplies the run
// flags a request may override per call.
func New(addr string, logger *slog.Logger, base pipeline.Config, caps Capabilities, pinger Pinger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger,
		base:   base,
		caps:   caps,
		pinger: pinger,
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "pixel-sender")
	})

	r.Post("/v1/runs", s.handleRun)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.Router = r
	return s
}

// Start serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
