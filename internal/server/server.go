// Package server provides the HTTP API: health, metrics, stat reports and
// on-demand refresh of a watched domain.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bryan-buckman/mudwatch/internal/poller"
	"github.com/bryan-buckman/mudwatch/internal/processor"
	"github.com/bryan-buckman/mudwatch/internal/stats"
)

// RefreshTimeout bounds a cycle started through the API.
const RefreshTimeout = 5 * time.Minute

// Reporter renders stat reports.
type Reporter interface {
	Run(ctx context.Context, report, name string, period stats.Period) (string, error)
}

// Refresher runs a domain cycle on demand.
type Refresher interface {
	RunOnce(ctx context.Context, domain string) error
	Domains() []string
}

// Server is the HTTP API server.
type Server struct {
	reporter  Reporter
	refresher Refresher
	log       zerolog.Logger
	router    chi.Router
	http      *http.Server
}

// New creates a server. refresher may be nil, which disables /api/refresh.
func New(reporter Reporter, refresher Refresher, log zerolog.Logger) *Server {
	s := &Server{reporter: reporter, refresher: refresher, log: log}
	s.setupRoutes()
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleReports)
		r.Get("/stats/{report}", s.handleStat)
		r.Get("/stats/{report}/{name}", s.handleStat)
		r.Get("/domains", s.handleDomains)
		r.Post("/refresh/{domain}", s.handleRefresh)
	})

	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	s.log.Info().Str("addr", addr).Msg("Server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully. A later Start returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reportInfo struct {
	Name      string `json:"name"`
	NeedsName bool   `json:"needsName"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	out := make([]reportInfo, 0, len(stats.Reports()))
	for _, name := range stats.Reports() {
		out = append(out, reportInfo{Name: name, NeedsName: stats.NeedsName[name]})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type reportResponse struct {
	Report string `json:"report"`
	Name   string `json:"name,omitempty"`
	Period string `json:"period"`
	Text   string `json:"text"`
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	report := chi.URLParam(r, "report")
	name := chi.URLParam(r, "name")

	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	text, err := s.reporter.Run(r.Context(), report, name, period)
	switch {
	case errors.Is(err, stats.ErrUnknownReport):
		s.writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, stats.ErrNameRequired):
		s.writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log.Error().Err(err).Str("report", report).Msg("Report failed")
		s.writeError(w, http.StatusInternalServerError, errors.New("report failed"))
		return
	}

	s.writeJSON(w, http.StatusOK, reportResponse{Report: report, Name: name, Period: period.String(), Text: text})
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeJSON(w, http.StatusOK, []string{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.refresher.Domains())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("refresh is disabled"))
		return
	}
	domain := chi.URLParam(r, "domain")

	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()

	err := s.refresher.RunOnce(ctx, domain)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, processor.ErrSkipped):
		status = "skipped"
	case errors.Is(err, poller.ErrUnknownDomain):
		s.writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, poller.ErrBusy):
		s.writeError(w, http.StatusConflict, err)
		return
	default:
		s.log.Error().Err(err).Str("domain", domain).Msg("Refresh failed")
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"domain": domain, "status": status})
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
