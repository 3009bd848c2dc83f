package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rr.Code)
	}
}

func TestReadinessHealthy(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.Register("redis", stubChecker{})
	h.Register("directory", stubChecker{})

	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rr.Code)
	}
	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentHealth `json:"components"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", body.Status)
	}
	if len(body.Components) != 2 {
		t.Fatalf("components = %v", body.Components)
	}
}

func TestReadinessDegraded(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.Register("redis", stubChecker{})
	h.Register("directory", stubChecker{err: errors.New("connection refused")})

	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rr.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", body.Status)
	}
}
