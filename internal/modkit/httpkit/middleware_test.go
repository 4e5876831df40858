package httpkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clockrelay/internal/platform/net/middleware"
)

func applyStack(h http.Handler, stack []func(http.Handler) http.Handler) http.Handler {
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestCommonStack(t *testing.T) {
	hit := 0
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit++
		if _, ok := r.Context().Deadline(); !ok {
			t.Errorf("expected request timeout on context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	root := applyStack(final, CommonStackWith(StackOptions{Timeout: time.Second}))

	rr := httptest.NewRecorder()
	root.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sync-events/jane", nil))
	if hit != 1 || rr.Code != http.StatusNoContent {
		t.Fatalf("hit=%d code=%d", hit, rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" && rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("expected stack headers, got %v", rr.Header())
	}

	rr = httptest.NewRecorder()
	root.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || hit != 1 {
		t.Fatalf("/health should be answered by the heartbeat, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sync-clock", strings.NewReader("subjectId=jane"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	root.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType || hit != 1 {
		t.Fatalf("form body should be refused, got %d", rr.Code)
	}
}

func TestCommonStack_RateLimit(t *testing.T) {
	root := applyStack(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), CommonStackWith(StackOptions{RateLimit: 1}))

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/tokens", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		rr := httptest.NewRecorder()
		root.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestAuth_NilPortPassesThrough(t *testing.T) {
	var p middleware.AuthPort
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tokens", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("nil port should not guard, got %d", rr.Code)
	}
}
