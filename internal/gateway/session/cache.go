// Package session caches verified token claims in the shared Store so
// repeat requests with the same token skip signature verification. Entries
// are keyed by a SHA-256 of the token, never the token itself.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"apigateway/internal/domain"
	"apigateway/internal/gateway"
)

// Cache stores verified claims with a bounded TTL.
type Cache struct {
	store gateway.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a session cache. Entries live for at most ttl, and
// never past the token's own expiry.
func NewCache(store gateway.Store, ttl time.Duration, clock func() time.Time) *Cache {
	return &Cache{store: store, ttl: ttl, now: clock}
}

// Lookup returns cached claims for the token, if present. Claims that
// expired since caching count as a miss.
func (c *Cache) Lookup(ctx context.Context, token string) (domain.Claims, bool, error) {
	raw, found, err := c.store.Get(ctx, cacheKey(token))
	if err != nil {
		return domain.Claims{}, false, err
	}
	if !found {
		return domain.Claims{}, false, nil
	}

	var claims domain.Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		// A corrupt entry is a miss; the token gets re-verified.
		return domain.Claims{}, false, nil
	}
	if claims.Expired(c.now()) {
		return domain.Claims{}, false, nil
	}
	return claims, true, nil
}

// Save caches verified claims. The entry TTL is capped by the token's
// remaining lifetime so a cached session can never outlive its token.
func (c *Cache) Save(ctx context.Context, token string, claims domain.Claims) error {
	ttl := c.ttl
	if !claims.ExpiresAt.IsZero() {
		if remaining := claims.ExpiresAt.Sub(c.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return c.store.Set(ctx, cacheKey(token), string(raw), ttl)
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
