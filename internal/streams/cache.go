package streams

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LocatorCache caches resolved locators per source identifier. Resolution is
// expensive and rate-limited upstream, so concurrent misses for the same key
// collapse into a single resolver call while lookups for other keys proceed
// independently. Only successful resolutions are cached.
type LocatorCache struct {
	resolver Resolver
	ttl      time.Duration
	nowFunc  func() time.Time

	mu      sync.RWMutex
	entries map[string]Locator

	group singleflight.Group
}

// NewLocatorCache wraps the resolver with a TTL-bounded cache.
func NewLocatorCache(resolver Resolver, ttl time.Duration) *LocatorCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocatorCache{
		resolver: resolver,
		ttl:      ttl,
		nowFunc:  time.Now,
		entries:  make(map[string]Locator),
	}
}

// GetOrResolve returns a usable locator for the source identifier, resolving
// it if no fresh entry exists. Callers receive their own copy; the cache
// retains exclusive ownership of stored entries.
func (c *LocatorCache) GetOrResolve(ctx context.Context, sourceID string) (Locator, error) {
	if c == nil || c.resolver == nil {
		return Locator{}, ErrResolverUnavailable
	}

	if loc, ok := c.lookup(sourceID); ok {
		return loc, nil
	}

	v, err, _ := c.group.Do(sourceID, func() (any, error) {
		// Another caller may have finished resolving while we queued.
		if loc, ok := c.lookup(sourceID); ok {
			return loc, nil
		}

		loc, err := c.resolver.Resolve(ctx, sourceID)
		if err != nil {
			return Locator{}, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
		}
		if loc.FetchURL == "" {
			return Locator{}, fmt.Errorf("%w: resolver produced empty locator", ErrResolutionFailed)
		}

		loc.ExpiresAt = c.now().Add(c.ttl)

		c.mu.Lock()
		c.entries[sourceID] = loc
		c.mu.Unlock()

		return loc, nil
	})
	if err != nil {
		return Locator{}, err
	}
	// Waiters on the same flight share the result value; hand each caller
	// its own copy.
	return v.(Locator).clone(), nil
}

// lookup returns a copy of a fresh entry. Stale entries are removed when
// observed so the map does not accumulate dead locators.
func (c *LocatorCache) lookup(sourceID string) (Locator, bool) {
	now := c.now()

	c.mu.RLock()
	loc, ok := c.entries[sourceID]
	c.mu.RUnlock()
	if !ok {
		return Locator{}, false
	}
	if now.Before(loc.ExpiresAt) {
		return loc.clone(), true
	}

	c.mu.Lock()
	if cur, exists := c.entries[sourceID]; exists && !now.Before(cur.ExpiresAt) {
		delete(c.entries, sourceID)
	}
	c.mu.Unlock()

	return Locator{}, false
}

func (c *LocatorCache) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}
