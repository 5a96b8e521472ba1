// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the HTTP trigger API.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/camgate/internal/api/middleware"
	"github.com/ManuGH/camgate/internal/audit"
	"github.com/ManuGH/camgate/internal/auth"
	"github.com/ManuGH/camgate/internal/capture"
	"github.com/ManuGH/camgate/internal/health"
	"github.com/ManuGH/camgate/internal/recordings"
)

// Capturer runs the capture pipelines.
type Capturer interface {
	Snapshot(ctx context.Context, d capture.Delivery) (capture.SnapshotResult, error)
	Record(ctx context.Context, req capture.RecordRequest, obs capture.RecordObserver) (capture.RecordResult, error)
}

// RecordingStore reads the recording ledger.
type RecordingStore interface {
	Get(ctx context.Context, id string) (recordings.Entry, error)
	List(ctx context.Context, limit int) ([]recordings.Entry, error)
}

// Config holds the HTTP-facing settings.
type Config struct {
	APIToken       string
	RateLimitRPM   int
	MetricsEnabled bool
	TracingService string
}

// Server routes trigger requests to the capture service.
type Server struct {
	cfg     Config
	capture Capturer
	ledger  RecordingStore
	health  *health.Manager
	audit   *audit.Logger
}

// New creates a Server.
func New(cfg Config, c Capturer, ledger RecordingStore, hm *health.Manager) *Server {
	return &Server{cfg: cfg, capture: c, ledger: ledger, health: hm, audit: audit.NewLogger()}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  s.cfg.MetricsEnabled,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.cfg.APIToken, s.unauthorized))
		if s.cfg.RateLimitRPM > 0 {
			r.Use(middleware.TriggerRateLimit(s.cfg.RateLimitRPM, s.audit.RateLimitExceeded))
		}
		r.Post("/snapshot", s.handleSnapshot)
		r.Post("/recordings", s.handleRecord)
		r.Get("/recordings", s.handleListRecordings)
		r.Get("/recordings/{id}", s.handleGetRecording)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return r
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.audit.AuthFailure(r)
	w.Header().Set("WWW-Authenticate", `Bearer realm="camgate"`)
	writeProblem(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API token")
}
