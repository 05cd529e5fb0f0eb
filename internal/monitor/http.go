package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/denas/internal/metrics"
)

// HTTPServer serves progress snapshots as JSON
type HTTPServer struct {
	mux      *http.ServeMux
	progress *Progress
	metrics  *metrics.Collector
}

// NewHTTPServer creates an HTTP front end for progress
func NewHTTPServer(progress *Progress) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		progress: progress,
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/progress", s.handleProgress)
	s.mux.HandleFunc("/v1/progress/", s.handleSpaceProgress)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	return s
}

// WithMetrics exposes c on /v1/metrics
func (s *HTTPServer) WithMetrics(c *metrics.Collector) *HTTPServer {
	s.metrics = c
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"spaces": s.progress.Snapshot()})
}

// handleSpaceProgress handles /v1/progress/{space}
func (s *HTTPServer) handleSpaceProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/v1/progress/"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "search space must be an integer")
		return
	}
	sp, ok := s.progress.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "search space not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sp)
}

// handleMetrics handles /v1/metrics and /v1/metrics?search_space=N
func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.metrics == nil {
		s.writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	raw := r.URL.Query().Get("search_space")
	if raw == "" {
		s.writeJSON(w, http.StatusOK, s.metrics.Summary())
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "search space must be an integer")
		return
	}
	labels := metrics.SpaceLabels(id)
	out := make(map[string]*metrics.Aggregation)
	for _, name := range s.metrics.Names() {
		if agg := s.metrics.Aggregation(name, labels); agg != nil {
			out[name] = agg
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"search_space": id, "aggregations": out})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
