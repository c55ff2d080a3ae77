// Package proxy routes authenticated requests to backend services by
// longest path prefix and relays their responses.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"apigateway/internal/domain"
	gw "apigateway/internal/gateway"
	"apigateway/internal/platform/telemetry"
)

// Rule maps a path prefix to a backend service.
type Rule struct {
	// Name is the route class, used for metrics and rate-limit keys.
	Name string
	// Prefix matches whole path segments: "/api/users" matches
	// "/api/users" and "/api/users/7" but never "/api/userscan".
	Prefix string
	// Target is the backend base URL.
	Target string
}

type route struct {
	name   string
	prefix string
	proxy  *httputil.ReverseProxy
}

// Router dispatches requests to backends. Rules are evaluated
// longest-prefix-first so an overlapping, more specific prefix always
// wins. Unmatched paths get a 404 envelope, never a default backend.
type Router struct {
	routes  []route
	timeout time.Duration
	metrics *telemetry.GatewayMetrics
}

// NewRouter creates a router for the given rules. Each backend call runs
// under timeout; on expiry the in-flight request is cancelled and the
// client receives a 504. The metrics parameter is optional; pass nil to
// skip metric recording.
func NewRouter(rules []Rule, timeout time.Duration, m *telemetry.GatewayMetrics) (*Router, error) {
	r := &Router{timeout: timeout, metrics: m}

	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		prefix := strings.TrimSuffix(rule.Prefix, "/")
		if prefix == "" || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route %q: prefix must start with /", rule.Name)
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("route %q: duplicate prefix %q", rule.Name, prefix)
		}
		seen[prefix] = struct{}{}

		target, err := url.Parse(rule.Target)
		if err != nil {
			return nil, fmt.Errorf("route %q: parse target URL: %w", rule.Name, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("route %q: target %q is not an absolute URL", rule.Name, rule.Target)
		}

		r.routes = append(r.routes, route{
			name:   rule.Name,
			prefix: prefix,
			proxy:  newReverseProxy(rule.Name, target),
		})
	}

	// Longest prefix first; order among equal lengths does not matter
	// because duplicates are rejected above.
	sort.Slice(r.routes, func(i, j int) bool {
		return len(r.routes[i].prefix) > len(r.routes[j].prefix)
	})

	return r, nil
}

// RouteClass returns the name of the rule the request would dispatch to,
// or "default" when no rule matches. Rate limiting uses it to bucket
// counters per backend.
func (r *Router) RouteClass(req *http.Request) string {
	if rt := r.match(req.URL.Path); rt != nil {
		return rt.name
	}
	return "default"
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt := r.match(req.URL.Path)
	if rt == nil {
		writeProxyError(w, http.StatusNotFound, domain.ErrNoRoute, "no route for path")
		return
	}

	ctx := req.Context()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	sw := &gw.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
	rt.proxy.ServeHTTP(sw, req.WithContext(ctx))

	if r.metrics != nil {
		duration := time.Since(start).Seconds()
		r.metrics.RecordProxyRequest(req.Context(), rt.name, sw.Code, duration)
	}
}

// match returns the longest-prefix route for path, honoring segment
// boundaries.
func (r *Router) match(path string) *route {
	for i := range r.routes {
		rt := &r.routes[i]
		if !strings.HasPrefix(path, rt.prefix) {
			continue
		}
		if len(path) == len(rt.prefix) || path[len(rt.prefix)] == '/' {
			return rt
		}
	}
	return nil
}

func newReverseProxy(name string, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host

			// Strip Authorization. Backends trust the subject header
			// instead of re-verifying tokens.
			req.Header.Del("Authorization")

			if claims, ok := gw.ClaimsFromContext(req.Context()); ok {
				req.Header.Set("X-Subject-ID", claims.Subject)
			}
			if reqID := gw.RequestIDFromContext(req.Context()); reqID != "" {
				req.Header.Set("X-Request-ID", reqID)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			reqID := gw.RequestIDFromContext(req.Context())
			if isTimeout(err) {
				slog.Warn("upstream timeout", "backend", name, "path", req.URL.Path,
					"request_id", reqID, "error", err)
				writeProxyError(w, http.StatusGatewayTimeout, domain.ErrUpstreamTimeout,
					"the backend did not respond in time")
				return
			}
			slog.Warn("upstream unavailable", "backend", name, "path", req.URL.Path,
				"request_id", reqID, "error", err)
			writeProxyError(w, http.StatusBadGateway, domain.ErrUpstreamUnavailable,
				"the backend could not be reached")
		},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func writeProxyError(w http.ResponseWriter, status int, sentinel error, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   domain.ErrorCode(sentinel),
		Message: msg,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
