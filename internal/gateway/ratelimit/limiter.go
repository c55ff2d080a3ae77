// Package ratelimit implements a fixed-window rate limiter on top of the
// shared Store. Counting is delegated to the store's atomic increment, so
// limits hold across gateway instances behind a load balancer.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"apigateway/internal/gateway"
)

// Limiter allows up to requests per window for each key.
type Limiter struct {
	store    gateway.Store
	requests int64
	window   time.Duration
}

// NewLimiter creates a limiter backed by the given store.
func NewLimiter(store gateway.Store, requests int64, window time.Duration) *Limiter {
	return &Limiter{store: store, requests: requests, window: window}
}

// Allow increments the counter for key and reports whether the request is
// within the window's budget. Store failures propagate so the caller can
// apply its failure policy.
func (l *Limiter) Allow(ctx context.Context, key string) (gateway.RateLimitResult, error) {
	count, err := l.store.IncrementWithTTL(ctx, l.storeKey(key), l.window)
	if err != nil {
		return gateway.RateLimitResult{}, err
	}

	if count > l.requests {
		// The store does not tell us when the window opened; the full
		// window length is the upper bound a client has to wait.
		return gateway.RateLimitResult{
			Allowed:    false,
			Count:      count,
			RetryAfter: int(math.Ceil(l.window.Seconds())),
		}, nil
	}
	return gateway.RateLimitResult{Allowed: true, Count: count}, nil
}

func (l *Limiter) storeKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}
