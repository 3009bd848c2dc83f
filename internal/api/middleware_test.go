package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestRequestIDMiddleware_Generates(t *testing.T) {
	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RequestIDMiddleware(inner).ServeHTTP(rr, req)

	if captured == "" {
		t.Fatal("expected a generated request id")
	}
	if rr.Header().Get("X-Request-ID") != captured {
		t.Fatal("response header should echo the request id")
	}
}

func TestRequestIDMiddleware_PropagatesExisting(t *testing.T) {
	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	RequestIDMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	if captured != "upstream-id" {
		t.Fatalf("request id = %q, want upstream-id", captured)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RecoveryMiddleware(zap.NewNop())(inner).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rr.Code)
	}
}

func TestRateLimiterRejectsWhenSaturated(t *testing.T) {
	rl := NewRateLimiter(1, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rl.Middleware(slow).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	<-started

	rr := httptest.NewRecorder()
	rl.Middleware(slow).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rr.Code)
	}

	close(release)
	wg.Wait()
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	CORSMiddleware(inner).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rr.Code)
	}
	methods := rr.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"PUT", "DELETE"} {
		if !strings.Contains(methods, m) {
			t.Fatalf("allow-methods %q missing %s", methods, m)
		}
	}
}
