package domain

import "time"

// Claims is the decoded payload of a verified bearer token. It is built
// per request by the auth middleware and discarded when the request ends.
type Claims struct {
	Subject   string            `json:"sub"`
	ExpiresAt time.Time         `json:"exp"`
	IssuedAt  time.Time         `json:"iat"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Expired reports whether the claims are past their expiry at the given time.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Get returns a custom claim by name.
func (c Claims) Get(name string) (string, bool) {
	v, ok := c.Extra[name]
	return v, ok
}
