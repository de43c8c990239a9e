// Package nonce tracks (key id, nonce) pairs seen within the replay window.
//
// The guard is the only shared mutable state in the request path. Its
// check-and-set must be atomic: two concurrent requests replaying the same
// nonce must not both be admitted.
package nonce

import (
	"sync"
	"time"
)

// DefaultTTL matches the timestamp freshness window of the request verifier.
// Once a timestamp would be rejected as stale, its nonce need not be
// remembered any longer.
const DefaultTTL = 60 * time.Second

// Guard records nonces as they are first seen.
type Guard interface {
	// CheckAndSet returns true if (keyID, nonce) was already seen within the
	// TTL. Otherwise it records the pair and returns false. The operation is
	// a single atomic add-if-absent.
	CheckAndSet(keyID, nonce string) (bool, error)
	// Close releases any backing resources.
	Close() error
}

// MemoryGuard is a mutex-guarded in-process Guard. It is suitable for tests
// and single-process deployments that can tolerate losing the replay window
// on restart; BadgerGuard persists it across restarts.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryGuard creates an in-memory guard with the given TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// CheckAndSet implements Guard.
func (g *MemoryGuard) CheckAndSet(keyID, nonce string) (bool, error) {
	key := keyID + ":" + nonce
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if first, ok := g.seen[key]; ok && now.Sub(first) <= g.ttl {
		return true, nil
	}
	g.seen[key] = now

	// Opportunistic sweep of expired entries so the map does not grow without
	// bound between requests.
	for k, first := range g.seen {
		if now.Sub(first) > g.ttl {
			delete(g.seen, k)
		}
	}
	return false, nil
}

// Close implements Guard.
func (g *MemoryGuard) Close() error { return nil }
