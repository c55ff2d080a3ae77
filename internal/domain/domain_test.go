package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"apigateway/internal/domain"
)

func TestClaimsExpired(t *testing.T) {
	now := time.Now()
	c := domain.Claims{
		Subject:   "user-1",
		IssuedAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
	}

	if c.Expired(now) {
		t.Error("claims with a future expiry should not be expired")
	}
	if !c.Expired(now.Add(2 * time.Hour)) {
		t.Error("claims past their expiry should be expired")
	}
}

func TestClaimsZeroExpiryNeverExpires(t *testing.T) {
	c := domain.Claims{Subject: "service-1"}

	if c.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("claims without an expiry should never report expired")
	}
}

func TestClaimsGet(t *testing.T) {
	c := domain.Claims{
		Subject: "user-1",
		Extra:   map[string]string{"role": "admin"},
	}

	role, ok := c.Get("role")
	if !ok || role != "admin" {
		t.Errorf("expected role 'admin', got %q (found=%v)", role, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing claim to not be found")
	}
}

func TestErrorResponseFields(t *testing.T) {
	e := domain.ErrorResponse{
		Error:   "unauthorized",
		Message: "invalid or expired token",
	}
	if e.Error != "unauthorized" {
		t.Errorf("unexpected error: %q", e.Error)
	}
	if e.Message != "invalid or expired token" {
		t.Errorf("unexpected message: %q", e.Message)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"missing token", domain.ErrMissingToken, "missing_token"},
		{"expired token", domain.ErrTokenExpired, "expired"},
		{"bad signature", domain.ErrInvalidSignature, "invalid_signature"},
		{"malformed token", domain.ErrInvalidToken, "invalid_token"},
		{"no route", domain.ErrNoRoute, "not_found"},
		{"rate limited", domain.ErrRateLimited, "rate_limited"},
		{"store down", domain.ErrStoreUnavailable, "dependency_unavailable"},
		{"upstream timeout", domain.ErrUpstreamTimeout, "upstream_timeout"},
		{"upstream down", domain.ErrUpstreamUnavailable, "upstream_unavailable"},
		{"unknown error", errors.New("boom"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.ErrorCode(tt.err); got != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, got)
			}
		})
	}
}

func TestErrorCodeUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("%w: dial tcp: connection refused", domain.ErrStoreUnavailable)
	if got := domain.ErrorCode(wrapped); got != "dependency_unavailable" {
		t.Errorf("expected wrapped sentinel to map to dependency_unavailable, got %q", got)
	}
}
