// Package status provides a lightweight HTTP API for observing a
// long-running trace reduction: which phase it is in, how many pairs
// remain, and the live performance counters. Long dynamic-pruning runs
// against a rate-limited server can take hours, so this is the operator's
// window into progress without tailing logs.
//
// Endpoints:
//
//	GET /status   - current phase and progress counters
//	GET /metrics  - full metrics snapshot
package status

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"reducetrace/internal/config"
	"reducetrace/internal/metrics"
)

// Progress is a point-in-time description of where the reduction is.
type Progress struct {
	Phase             string `json:"phase"`
	TraceLength       int    `json:"traceLength"`
	CurrentLength     int    `json:"currentLength"`
	DynamicProbesDone int    `json:"dynamicProbesDone"`
	DynamicProbesMax  int    `json:"dynamicProbesMax"`
}

// Server is the status API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	token     string // bearer token for auth; empty = no auth
	metrics   *metrics.Metrics
	progress  atomic.Pointer[Progress]
}

// New creates a status server. m may be nil to disable the /metrics endpoint.
func New(cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		token:     cfg.StatusToken,
		metrics:   m,
	}
	s.progress.Store(&Progress{Phase: "starting"})
	if s.token != "" {
		log.Printf("[STATUS] Bearer token authentication enabled")
	}
	return s
}

// SetProgress updates the progress snapshot the /status endpoint reports.
// Safe to call concurrently with request handling.
func (s *Server) SetProgress(p Progress) {
	s.progress.Store(&p)
}

// Handler returns the HTTP handler for the status API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			log.Printf("[STATUS] Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status   string   `json:"status"`
		Uptime   string   `json:"uptime"`
		RunID    string   `json:"runID"`
		Progress Progress `json:"progress"`
	}

	resp := response{
		Status:   "running",
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		RunID:    s.cfg.RunID,
		Progress: *s.progress.Load(),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[STATUS] JSON encode error: %v", err)
	}
}

// ListenAndServe starts the status HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.StatusPort)
	log.Printf("[STATUS] Listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
