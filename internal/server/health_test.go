package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	live   bool
	ready  bool
	status map[string]string
}

func (c *stubChecker) Liveness() bool                     { return c.live }
func (c *stubChecker) Readiness(ctx context.Context) bool { return c.ready }
func (c *stubChecker) GetStatus() map[string]string       { return c.status }

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		live       bool
		wantStatus int
		wantBody   string
	}{
		{"alive", true, http.StatusOK, "alive"},
		{"not alive", false, http.StatusServiceUnavailable, "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&stubChecker{live: tt.live}, slog.Default())

			req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	checker := &stubChecker{
		live:   true,
		ready:  true,
		status: map[string]string{"kafka": "connected", "sink": "ok"},
	}
	handler := ReadinessHandler(checker, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Checks["kafka"] != "connected" {
		t.Errorf("Checks = %v", resp.Checks)
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := ReadinessHandler(&stubChecker{live: true, ready: false}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
