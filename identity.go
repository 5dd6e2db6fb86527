package gamelan

import (
	"context"
	"sync"
	"time"

	"github.com/ambiyansyah-risyal/gamelan/internal/flight"
)

// Identity is opaque credential material with an optional absolute expiry.
// Identities are shared by read-only reference and never mutated after
// creation. A zero Expiry means the identity never expires.
type Identity struct {
	Value  any
	Expiry time.Time
}

// Expired reports whether the identity's expiry has passed.
func (id *Identity) Expired(now time.Time) bool {
	if id == nil {
		return true
	}
	return !id.Expiry.IsZero() && !now.Before(id.Expiry)
}

// expiresWithin reports whether the identity, while still valid, is inside
// the proactive refresh window.
func (id *Identity) expiresWithin(now time.Time, buffer time.Duration) bool {
	if id == nil || id.Expiry.IsZero() {
		return false
	}
	return id.Expiry.Sub(now) <= buffer
}

// RefreshErrorHandler observes background refresh failures. The blocking
// path surfaces provider errors to its waiters directly; only failures of
// opportunistic stale-while-revalidate refreshes reach this handler.
type RefreshErrorHandler func(err error)

// IdentityCache caches identity material for one client configuration
// scope. Concurrent cache misses coalesce into a single provider call; a
// valid identity inside the refresh buffer is served immediately while one
// non-blocking refresh runs behind it.
//
// The internal mutex arbitrates only state transitions, never the provider
// call itself, so readers are never blocked behind a slow provider.
type IdentityCache struct {
	provider       IdentityProvider
	buffer         time.Duration
	clock          Clock
	onRefreshError RefreshErrorHandler
	metrics        *MetricsCollector

	mu       sync.Mutex
	current  *Identity
	inflight *flight.Call[*Identity]
}

// NewIdentityCache creates a cache around provider. Identities whose expiry
// is within buffer of the current time are served stale while a background
// refresh runs.
func NewIdentityCache(provider IdentityProvider, buffer time.Duration) *IdentityCache {
	return &IdentityCache{
		provider: provider,
		buffer:   buffer,
		clock:    realClock{},
	}
}

// Resolve returns cached identity material, refreshing it as needed. It is
// safe for concurrent use. Provider errors are surfaced once per pending
// refresh and never retried internally; retry policy belongs to the
// orchestrator.
func (c *IdentityCache) Resolve(ctx context.Context) (*Identity, error) {
	if c.provider == nil {
		return nil, ErrNoIdentityProvider
	}

	c.mu.Lock()
	now := c.clock.Now()

	if c.current != nil && !c.current.Expired(now) {
		id := c.current
		if !id.expiresWithin(now, c.buffer) {
			c.mu.Unlock()
			c.metrics.RecordIdentityCacheHit()
			return id, nil
		}

		// Stale but usable: serve immediately, refresh behind the caller.
		if c.inflight == nil {
			call := c.beginRefreshLocked()
			go c.reapBackground(call)
			c.metrics.RecordIdentityRefresh("background")
		}
		c.mu.Unlock()
		c.metrics.RecordIdentityCacheHit()
		return id, nil
	}

	// Empty or expired: join the in-flight refresh or become its owner.
	call := c.inflight
	if call == nil {
		call = c.beginRefreshLocked()
		c.metrics.RecordIdentityRefresh("blocking")
	}
	c.mu.Unlock()

	c.metrics.RecordIdentityCacheMiss()
	return call.Wait(ctx)
}

// beginRefreshLocked starts the single provider call for the current
// refresh. The caller must hold c.mu; the provider runs outside the lock.
// The call is detached from any one caller's context so a canceled waiter
// cannot abort a refresh other callers share.
func (c *IdentityCache) beginRefreshLocked() *flight.Call[*Identity] {
	call := flight.New[*Identity]()
	c.inflight = call

	go func() {
		id, err := c.provider.ProvideIdentity(context.Background())

		c.mu.Lock()
		if err == nil {
			c.current = id
		} else if c.current.Expired(c.clock.Now()) {
			// The prior identity is unusable; revert to empty so the next
			// caller attempts a fresh provider call.
			c.current = nil
		}
		c.inflight = nil
		c.mu.Unlock()

		call.Finish(id, err)
	}()

	return call
}

// reapBackground drains an opportunistic refresh nobody is waiting on and
// routes its failure, if any, to the configured handler.
func (c *IdentityCache) reapBackground(call *flight.Call[*Identity]) {
	if _, err := call.Wait(context.Background()); err != nil && c.onRefreshError != nil {
		c.onRefreshError(err)
	}
}
