package domain

import "errors"

// Sentinel errors used across service boundaries.
var (
	// Auth failures, one per rejection cause so the middleware can report
	// a distinct error code for each.
	ErrMissingToken     = errors.New("missing token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")

	ErrNoRoute     = errors.New("no route for path")
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable marks a failed round-trip to the shared store.
	// Callers apply their configured fail-open or fail-closed policy.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUpstreamUnavailable covers connection failures to a backend;
	// ErrUpstreamTimeout covers backends that accepted but never answered.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
)

// ErrorResponse is the standard JSON error envelope returned to clients.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// ErrorCode maps a sentinel to the stable code clients see in the error
// envelope. Codes are part of the API surface; renaming one breaks
// clients that switch on it.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrNoRoute):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrStoreUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal_error"
	}
}
