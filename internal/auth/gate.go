// Package auth implements the admin session gate guarding credential
// operations.
package auth

import (
	"crypto/subtle"
	"time"
)

// DefaultSessionTTL is how long an admin session stays valid without use.
const DefaultSessionTTL = 300 * time.Second

// Gate is a time-boxed admin authentication gate. A gate belongs to exactly
// one conversation; there is no process-wide instance.
//
// Expiry is pull-based: no timer runs, the Authenticated -> Expired
// transition happens on the first Valid() call after the deadline.
type Gate struct {
	secret        string
	ttl           time.Duration
	authenticated bool
	authedAt      time.Time
	now           func() time.Time
}

// NewGate creates a gate for the given shared secret. A non-positive ttl
// falls back to DefaultSessionTTL.
func NewGate(secret string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Gate{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Authenticate compares the password against the configured secret. On match
// it opens the gate and stamps the current time; on mismatch the state is
// left unchanged. There is no lockout on repeated failures.
func (g *Gate) Authenticate(pw string) bool {
	if subtle.ConstantTimeCompare([]byte(pw), []byte(g.secret)) != 1 {
		return false
	}
	g.authenticated = true
	g.authedAt = g.now()
	return true
}

// Valid reports whether the admin session is open. When the session has
// outlived the ttl this performs the Expired transition, clearing all state.
func (g *Gate) Valid() bool {
	if !g.authenticated {
		return false
	}
	if g.now().Sub(g.authedAt) > g.ttl {
		g.Logout()
		return false
	}
	return true
}

// Remaining returns the seconds left on the session, 0 when invalid.
func (g *Gate) Remaining() int {
	if !g.Valid() {
		return 0
	}
	left := g.ttl - g.now().Sub(g.authedAt)
	if left < 0 {
		return 0
	}
	return int(left.Seconds())
}

// Extend resets the session clock. No-op when not authenticated.
func (g *Gate) Extend() {
	if g.authenticated {
		g.authedAt = g.now()
	}
}

// Logout closes the gate unconditionally.
func (g *Gate) Logout() {
	g.authenticated = false
	g.authedAt = time.Time{}
}

// TTL returns the configured session duration.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// SetClock overrides the time source. Test seam.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}
