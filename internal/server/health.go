// Package server implements health check handlers.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse is the JSON body returned by the probe endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler serves the liveness probe. It fails only when the
// process itself needs a restart.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !checker.Liveness() {
			writeHealth(w, logger, http.StatusServiceUnavailable, HealthResponse{Status: "not alive"})
			return
		}
		writeHealth(w, logger, http.StatusOK, HealthResponse{Status: "alive"})
	}
}

// ReadinessHandler serves the readiness probe, reporting whether the
// pipeline can take traffic along with per-component detail.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if !checker.Readiness(r.Context()) {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		writeHealth(w, logger, code, HealthResponse{
			Status: status,
			Checks: checker.GetStatus(),
		})
	}
}

func writeHealth(w http.ResponseWriter, logger *slog.Logger, code int, resp HealthResponse) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
