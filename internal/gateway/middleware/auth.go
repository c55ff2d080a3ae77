package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"apigateway/internal/domain"
	gw "apigateway/internal/gateway"
	"apigateway/internal/gateway/session"
	"apigateway/internal/platform/config"
	"apigateway/internal/platform/telemetry"
)

const maxClockSkew = 30 * time.Second

// AuthOptions configures the auth middleware.
type AuthOptions struct {
	Secret []byte
	// Method is the only accepted signing method (HS256, HS384 or HS512).
	// Unsigned ("none") tokens can never pass: the parser is pinned to
	// this single HMAC method.
	Method string
	// Sessions caches verified claims in the shared store; nil disables
	// the cache and every request is verified directly.
	Sessions *session.Cache
	// SessionFailurePolicy decides what a store outage during session
	// lookup means: failclosed rejects the request, failopen falls back
	// to direct verification.
	SessionFailurePolicy config.FailurePolicy
	// PublicPaths are exempt from authentication.
	PublicPaths []string
}

// Auth returns a middleware that validates bearer tokens signed with the
// configured shared secret and attaches the resulting claims to the
// request context. The metrics parameter is optional; pass nil to skip
// metric recording.
func Auth(opts AuthOptions, m *telemetry.GatewayMetrics) Middleware {
	public := make(map[string]struct{}, len(opts.PublicPaths))
	for _, p := range opts.PublicPaths {
		public[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := extractBearerToken(r)
			if !ok {
				if m != nil {
					m.RecordAuthValidation(r.Context(), "failure")
				}
				writeAuthError(w, domain.ErrorCode(domain.ErrMissingToken), "missing or malformed authorization header")
				return
			}

			if opts.Sessions != nil {
				claims, hit, err := opts.Sessions.Lookup(r.Context(), tokenStr)
				switch {
				case err != nil:
					slog.Warn("session lookup failed", "error", err, "policy", opts.SessionFailurePolicy)
					if m != nil {
						m.RecordStoreFailure(r.Context(), "session")
					}
					if opts.SessionFailurePolicy == config.FailClosed {
						writeDependencyError(w)
						return
					}
					// fail-open: fall through to direct verification
				case hit:
					if m != nil {
						m.RecordSessionCache(r.Context(), "hit")
						m.RecordAuthValidation(r.Context(), "success")
					}
					next.ServeHTTP(w, r.WithContext(gw.ContextWithClaims(r.Context(), claims)))
					return
				default:
					if m != nil {
						m.RecordSessionCache(r.Context(), "miss")
					}
				}
			}

			claims, err := verifyToken(tokenStr, opts.Secret, opts.Method)
			if err != nil {
				slog.Debug("auth validation failed", "error", err)
				if m != nil {
					m.RecordAuthValidation(r.Context(), "failure")
				}
				writeAuthError(w, domain.ErrorCode(err), "invalid or expired token")
				return
			}

			if opts.Sessions != nil {
				// Best effort: a failed save only costs the next request
				// a re-verification.
				if err := opts.Sessions.Save(r.Context(), tokenStr, claims); err != nil {
					slog.Warn("session save failed", "error", err)
					if m != nil {
						m.RecordStoreFailure(r.Context(), "session")
					}
				}
			}

			if m != nil {
				m.RecordAuthValidation(r.Context(), "success")
			}
			next.ServeHTTP(w, r.WithContext(gw.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// verifyToken checks the token's signature and expiry and extracts claims.
func verifyToken(tokenStr string, secret []byte, method string) (domain.Claims, error) {
	token, err := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{method}),
		jwt.WithLeeway(maxClockSkew),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Claims{}, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.Claims{}, domain.ErrInvalidSignature
		default:
			return domain.Claims{}, domain.ErrInvalidToken
		}
	}
	if !token.Valid {
		return domain.Claims{}, domain.ErrInvalidToken
	}
	return extractClaims(token.Claims)
}

func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// registeredClaims are the names excluded from Claims.Extra.
var registeredClaims = map[string]struct{}{
	"sub": {}, "exp": {}, "iat": {}, "nbf": {}, "iss": {}, "aud": {}, "jti": {},
}

func extractClaims(claims jwt.Claims) (domain.Claims, error) {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return domain.Claims{}, domain.ErrInvalidToken
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return domain.Claims{}, domain.ErrInvalidToken
	}

	out := domain.Claims{Subject: sub}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}

	for name, v := range mc {
		if _, reserved := registeredClaims[name]; reserved {
			continue
		}
		if s, ok := v.(string); ok {
			if out.Extra == nil {
				out.Extra = make(map[string]string)
			}
			out.Extra[name] = s
		}
	}
	return out, nil
}

func writeAuthError(w http.ResponseWriter, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   errCode,
		Message: msg,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}

func writeDependencyError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   domain.ErrorCode(domain.ErrStoreUnavailable),
		Message: "a required dependency is unavailable",
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
