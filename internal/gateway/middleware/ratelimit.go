package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"apigateway/internal/domain"
	gw "apigateway/internal/gateway"
	"apigateway/internal/platform/config"
	"apigateway/internal/platform/telemetry"
)

// RouteClassifier maps a request to the route class its rate-limit counter
// is bucketed under.
type RouteClassifier func(*http.Request) string

// RateLimit returns middleware that enforces per-client limits through the
// shared store. Counters are keyed by {routeClass, clientIP} so limits hold
// per backend and across gateway instances. policy decides what a store
// outage means: failopen lets traffic through, failclosed rejects it.
// The metrics parameter is optional; pass nil to skip metric recording.
func RateLimit(limiter gw.RateLimiter, classify RouteClassifier, policy config.FailurePolicy, m *telemetry.GatewayMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routeClass := classify(r)
			key := routeClass + ":" + clientIP(r)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Warn("rate limit check failed", "error", err, "policy", policy)
				if m != nil {
					m.RecordStoreFailure(r.Context(), "ratelimit")
				}
				if policy == config.FailClosed {
					writeDependencyError(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				if m != nil {
					m.RecordRateLimitDecision(r.Context(), routeClass, "denied")
				}
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			if m != nil {
				m.RecordRateLimitDecision(r.Context(), routeClass, "allowed")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// Use RemoteAddr directly. X-Forwarded-For is client-controlled and
	// must not be trusted without a validated trusted proxy list.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitError(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:      domain.ErrorCode(domain.ErrRateLimited),
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
