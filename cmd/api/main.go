package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"relentless-jobs/common"
	"relentless-jobs/internal/store"
	"relentless-jobs/pkg/logging"
)

// server answers run status lookups written by the scraper's Redis sink.
type server struct {
	store store.StatusStore
	log   *logging.Logger
}

func newServer(store store.StatusStore, logger *logging.Logger) *server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &server{store: store, log: logger}
}

func main() {
	logger := logging.New(common.GetEnv("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	redisAddr := common.GetEnv("REDIS_ADDR", "localhost:6379")
	ttl := common.ParseDuration(common.GetEnv("STATUS_TTL", "24h"), 24*time.Hour)
	addr := common.GetEnv("API_ADDR", ":8080")

	statusStore := store.NewRedisStatusStore(redisAddr, "run:", ttl)
	defer func() {
		if err := statusStore.Close(); err != nil {
			logger.Warn("failed to close status store", "error", err)
		}
	}()

	srv := newServer(statusStore, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/runs/", srv.handleRunStatus)
	mux.HandleFunc("/metrics", srv.handleMetrics)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("api listening", "addr", addr, "redis", redisAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("api server error", "error", err)
	}
}

// handleRunStatus returns the status and, once finished, the summary of a run.
//
// Method: GET
// Path:   /runs/{runID}
// Example:
//
//	curl "http://localhost:8080/runs/5b0f6c1e-2a4f-4f8e-9d7a-0c3f1e2d4b6a"
func (s *server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	status, ok, err := s.store.GetStatus(r.Context(), runID)
	if err != nil {
		s.log.Error("status lookup failed", "run_id", runID, "error", err)
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, status, http.StatusOK)
}

// handleMetrics exposes a minimal Prometheus-compatible endpoint.
func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("relentless_jobs_api_up 1\n"))
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
