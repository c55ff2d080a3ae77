// Package testutil holds helpers shared by unit, integration and load
// tests: token issuance, mock backends and store stubs.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"apigateway/internal/domain"
)

// TestSecret is the shared signing secret used across the test suite.
const TestSecret = "test-signing-secret"

// IssueToken creates a token signed with TestSecret and HS256.
// A negative ttl produces an already-expired token.
func IssueToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	return IssueTokenSigned(t, TestSecret, jwt.SigningMethodHS256, subject, ttl, nil)
}

// IssueTokenSigned creates a token with full control over secret, method
// and extra claims.
func IssueTokenSigned(t *testing.T, secret string, method jwt.SigningMethod, subject string, ttl time.Duration, extra map[string]string) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": "gateway-test",
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// IssueUnsignedToken creates a token with alg=none. The gateway must
// always reject it.
func IssueUnsignedToken(t *testing.T, subject string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing unsigned token: %v", err)
	}
	return signed
}

// MockBackendHandler returns an http.Handler that echoes request details.
// Used to test that the gateway correctly proxies requests with the
// subject and request ID headers.
func MockBackendHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"backend":       name,
			"method":        r.Method,
			"path":          r.URL.Path,
			"subject_id":    r.Header.Get("X-Subject-ID"),
			"request_id":    r.Header.Get("X-Request-ID"),
			"authorization": r.Header.Get("Authorization"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}

// FailingStore is a Store whose every operation reports the shared store
// as unavailable. Used to exercise fail-open and fail-closed policies.
type FailingStore struct{}

func (FailingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, domain.ErrStoreUnavailable
}

func (FailingStore) Set(context.Context, string, string, time.Duration) error {
	return domain.ErrStoreUnavailable
}

func (FailingStore) IncrementWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}
