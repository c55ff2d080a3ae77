package gateway

import (
	"context"
	"net/http"
	"time"

	"apigateway/internal/domain"
)

// Store is the shared key-value state behind session caching and rate
// limiting. Implementations must make IncrementWithTTL atomic and set the
// TTL only when the counter is created, never on later increments;
// otherwise sustained traffic keeps a window alive forever. Multiple
// gateway instances may share one Store; it is the single source of truth
// for counters.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key, (re)setting its expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// IncrementWithTTL atomically increments the counter at key and
	// returns the new count. The TTL applies only on creation.
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimiter decides whether a request identified by key should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Count      int64
	RetryAfter int // seconds until the window expires; 0 if allowed
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (sw *StatusWriter) WriteHeader(code int) {
	sw.Code = code
	sw.ResponseWriter.WriteHeader(code)
}

// ClaimsFromContext extracts the verified token claims from a request context.
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(domain.Claims)
	return c, ok
}

// ContextWithClaims stores verified token claims in the context.
func ContextWithClaims(ctx context.Context, c domain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

type claimsKey struct{}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores the request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
