package videos

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	metadata Metadata
	expires  time.Time
}

// CachingProvider wraps another Provider with a TTL-based in-memory cache so
// repeated catalog lookups for the same source avoid redundant yt-dlp runs.
type CachingProvider struct {
	base    Provider
	ttl     time.Duration
	nowFunc func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingProvider returns a Provider that caches lookups for the provided TTL.
func NewCachingProvider(base Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingProvider{
		base:    base,
		ttl:     ttl,
		nowFunc: time.Now,
		items:   make(map[string]cacheEntry),
	}
}

// Lookup returns cached metadata when available, otherwise it delegates to the
// underlying provider and stores the result. Failed lookups are not cached.
func (c *CachingProvider) Lookup(ctx context.Context, sourceID string) (Metadata, error) {
	if c == nil || c.base == nil {
		return Metadata{}, ErrProviderUnavailable
	}

	now := c.nowFunc()

	c.mu.RLock()
	entry, ok := c.items[sourceID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.metadata, nil
	}

	metadata, err := c.base.Lookup(ctx, sourceID)
	if err != nil {
		return Metadata{}, err
	}

	c.mu.Lock()
	c.items[sourceID] = cacheEntry{metadata: metadata, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return metadata, nil
}
