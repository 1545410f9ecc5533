// Package api exposes the HTTP interface for the aggregation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/store"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Service is the application surface the HTTP layer needs.
type Service interface {
	Generate(ctx context.Context, r techwatch.DateRange, sources []string) (techwatch.RunReport, error)
	ListSources() []string
	LoadLatest(ctx context.Context) (techwatch.Envelope, error)
}

// Config tunes the HTTP layer.
type Config struct {
	// RequestTimeout caps any single request, including a full crawl run
	// triggered through POST /v1/runs.
	RequestTimeout time.Duration
	// DefaultRangeDays is the window used when a run request names no
	// explicit range.
	DefaultRangeDays int
}

// Server wires HTTP handlers to the service.
type Server struct {
	router chi.Router
	svc    Service
	clock  techwatch.Clock
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Service, clock techwatch.Clock, cfg Config, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.DefaultRangeDays <= 0 {
		cfg.DefaultRangeDays = 7
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, clock: clock, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.triggerRun)
		r.Get("/sources", s.listSources)
		r.Get("/latest", s.latestDataset)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	Days    *int     `json:"days"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Sources []string `json:"sources"`
}

type runResponse struct {
	Range string `json:"range"`
	techwatch.RunReport
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	dateRange, err := s.resolveRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.svc.Generate(r.Context(), dateRange, req.Sources)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Range: dateRange.String(), RunReport: report})
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.svc.ListSources()})
}

func (s *Server) latestDataset(w http.ResponseWriter, r *http.Request) {
	env, err := s.svc.LoadLatest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Serve the interchange format, byte-for-byte what lands on disk.
	data, err := store.Encode(env)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("writing dataset response failed", zap.Error(err))
	}
}

const dayFormat = "2006-01-02"

func (s *Server) resolveRange(req runRequest) (techwatch.DateRange, error) {
	if req.Start != "" || req.End != "" {
		if req.Days != nil {
			return techwatch.DateRange{}, errors.New("days and start/end are mutually exclusive")
		}
		start, err := time.Parse(dayFormat, req.Start)
		if err != nil {
			return techwatch.DateRange{}, errors.New("start must be YYYY-MM-DD")
		}
		end, err := time.Parse(dayFormat, req.End)
		if err != nil {
			return techwatch.DateRange{}, errors.New("end must be YYYY-MM-DD")
		}
		return techwatch.NewDateRange(start, end)
	}
	days := s.cfg.DefaultRangeDays
	if req.Days != nil {
		days = *req.Days
	}
	if days <= 0 {
		return techwatch.DateRange{}, errors.New("days must be positive")
	}
	// A window of n days ends today, like LastNDays.
	return techwatch.DaysBackFrom(s.clock.Now(), days-1), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
