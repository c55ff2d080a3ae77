package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apigateway/internal/domain"
	"apigateway/internal/gateway/adapter/inmem"
	"apigateway/internal/gateway/middleware"
	"apigateway/internal/gateway/ratelimit"
	"apigateway/internal/platform/config"
	"apigateway/internal/testutil"
)

func staticClass(class string) middleware.RouteClassifier {
	return func(*http.Request) string { return class }
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	now := time.Now()
	store := inmem.NewStore(func() time.Time { return now })
	limiter := ratelimit.NewLimiter(store, 3, time.Minute)

	handler := middleware.RateLimit(limiter, staticClass("users"), config.FailOpen, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := range 3 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitDeniesOverBudget(t *testing.T) {
	now := time.Now()
	store := inmem.NewStore(func() time.Time { return now })
	limiter := ratelimit.NewLimiter(store, 2, time.Minute)

	handler := middleware.RateLimit(limiter, staticClass("users"), config.FailOpen, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for range 2 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		handler.ServeHTTP(rec, req)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var errResp domain.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error != "rate_limited" {
		t.Errorf("expected error 'rate_limited', got %q", errResp.Error)
	}
}

func TestRateLimitSeparateClients(t *testing.T) {
	now := time.Now()
	store := inmem.NewStore(func() time.Time { return now })
	limiter := ratelimit.NewLimiter(store, 1, time.Minute)

	handler := middleware.RateLimit(limiter, staticClass("users"), config.FailOpen, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(rec, req)

	// A different client IP has its own counter.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "10.0.0.2:2222"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for second client, got %d", rec.Code)
	}
}

func TestRateLimitSeparateRouteClasses(t *testing.T) {
	now := time.Now()
	store := inmem.NewStore(func() time.Time { return now })
	limiter := ratelimit.NewLimiter(store, 1, time.Minute)

	classify := func(r *http.Request) string {
		if r.URL.Path == "/api/inventory/1" {
			return "inventory"
		}
		return "users"
	}

	handler := middleware.RateLimit(limiter, classify, config.FailOpen, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/1", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(rec, req)

	// The same client against a different route class is not throttled.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/inventory/1", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for different route class, got %d", rec.Code)
	}
}

func TestRateLimitStoreOutageFailOpen(t *testing.T) {
	limiter := ratelimit.NewLimiter(testutil.FailingStore{}, 10, time.Minute)

	called := false
	handler := middleware.RateLimit(limiter, staticClass("users"), config.FailOpen, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("fail-open should let the request through on store outage")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitStoreOutageFailClosed(t *testing.T) {
	limiter := ratelimit.NewLimiter(testutil.FailingStore{}, 10, time.Minute)

	handler := middleware.RateLimit(limiter, staticClass("users"), config.FailClosed, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("fail-closed should reject the request on store outage")
		}),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
