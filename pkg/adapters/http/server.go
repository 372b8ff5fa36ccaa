package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/crackle/pkg/observability"
	"github.com/aretw0/crackle/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the status of a fuzzing process over HTTP.
type Server struct {
	Tracker  *observability.Tracker
	Faults   ports.FaultLister
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewHandler creates the status handler:
//
//	GET /healthz              liveness
//	GET /metrics              Prometheus exposition
//	GET /runs/last            progress of the current or last run
//	GET /runs/{runID}/faults  faults of a run
//	GET /events               server-sent snapshots after every iteration
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Gatherer == nil {
		s.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/runs/last", s.GetLastRun)
	r.Get("/runs/{runID}/faults", s.ListFaults)
	r.Get("/events", s.SubscribeEvents)
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetLastRun handles GET /runs/last.
func (s *Server) GetLastRun(w http.ResponseWriter, r *http.Request) {
	if s.Tracker == nil {
		http.Error(w, "Run tracking disabled", http.StatusNotFound)
		return
	}
	snap := s.Tracker.Snapshot()
	if snap.RunID == "" {
		http.Error(w, "No run yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, snap)
}

// ListFaults handles GET /runs/{runID}/faults.
func (s *Server) ListFaults(w http.ResponseWriter, r *http.Request) {
	if s.Faults == nil {
		http.Error(w, "Fault listing disabled", http.StatusNotFound)
		return
	}
	runID := chi.URLParam(r, "runID")
	faults, err := s.Faults.List(r.Context(), runID)
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("ListFaults failed", "run_id", runID, "err", err)
		return
	}
	s.writeJSON(w, faults)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	if s.Tracker == nil {
		http.Error(w, "Run tracking disabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snapshots := s.Tracker.Watch(r.Context())
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE client disconnected")
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.Logger.Error("SSE snapshot encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
