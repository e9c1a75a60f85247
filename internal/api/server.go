// Package api provides the HTTP API for querying stored sweep runs.
// Every endpoint is GET-only and read-only.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/persistence"
)

// Server serves stored runs over HTTP.
type Server struct {
	DB         *persistence.DB
	Port       int
	Version    string
	RateLimit  int           // Requests per RateWindow and client IP
	RateWindow time.Duration

	started time.Time
}

// Handler builds the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	limiter := NewRateLimiter(s.RateLimit, s.RateWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/runs", getOnly(s.handleRuns))
	mux.HandleFunc("/api/v1/results", getOnly(s.handleResults))
	mux.HandleFunc("/api/v1/ensemble", getOnly(s.handleEnsemble))
	mux.HandleFunc("/api/v1/trace", getOnly(s.handleTrace))

	return corsMiddleware(RateLimitMiddleware(limiter, mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "rate_limit", s.RateLimit, "rate_window", s.RateWindow)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("HTTP API stopping")
	return srv.Shutdown(shutdownCtx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":    "dilemmasim",
		"version": s.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}

	if run, err := s.DB.LastRun(); err == nil {
		status["last_run"] = map[string]any{
			"id":       run.ID,
			"topology": run.Topology,
			"rule":     run.Rule,
			"agents":   run.Agents,
			"episodes": run.Episodes,
			"created":  humanize.Time(time.Unix(run.Created, 0)),
		}
	} else if !errors.Is(err, persistence.ErrNotFound) {
		s.fail(w, err)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := s.DB.Runs(limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}
	results, err := s.DB.LoadResults(run.ID)
	if err != nil {
		s.fail(w, err)
		return
	}

	// Optional episode filter.
	if e := r.URL.Query().Get("episode"); e != "" {
		episode, err := strconv.Atoi(e)
		if err != nil {
			http.Error(w, "invalid episode", http.StatusBadRequest)
			return
		}
		filtered := results[:0]
		for _, res := range results {
			if res.Episode == episode {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	if results == nil {
		results = []model.EpisodeResult{}
	}

	writeJSON(w, map[string]any{
		"run":     run.ID,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleEnsemble(w http.ResponseWriter, r *http.Request) {
	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}
	points, err := s.DB.Ensemble(run.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if points == nil {
		points = []model.EnsemblePoint{}
	}
	writeJSON(w, map[string]any{
		"run":    run.ID,
		"points": points,
	})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}
	p, err := parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := s.DB.LoadTrace(run.ID, p)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(points) == 0 {
		http.Error(w, "no trace stored for "+p.String(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"run":    run.ID,
		"dg":     p.Dg,
		"dr":     p.Dr,
		"points": points,
	})
}

// resolveRun returns the run named by ?run=, or the latest run.
func (s *Server) resolveRun(w http.ResponseWriter, r *http.Request) (persistence.Run, bool) {
	var (
		run persistence.Run
		err error
	)
	if id := r.URL.Query().Get("run"); id != "" {
		run, err = s.DB.GetRun(id)
	} else {
		run, err = s.DB.LastRun()
	}
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return run, false
	}
	if err != nil {
		s.fail(w, err)
		return run, false
	}
	return run, true
}

func parseParams(r *http.Request) (model.Params, error) {
	var p model.Params
	q := r.URL.Query()
	for _, f := range []struct {
		key string
		dst *float64
	}{{"dg", &p.Dg}, {"dr", &p.Dr}} {
		raw := q.Get(f.key)
		if raw == "" {
			return p, fmt.Errorf("missing %s", f.key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return p, fmt.Errorf("invalid %s %q", f.key, raw)
		}
		*f.dst = v
	}
	return p, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	slog.Error("api request failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
