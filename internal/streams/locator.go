// Package streams resolves upstream stream locations for videos and relays
// their bytes to clients without exposing the upstream provider.
package streams

import (
	"context"
	"time"
)

// Locator is a transient pointer to a fetchable upstream stream: the URL to
// fetch plus any headers the upstream requires. Locators expire and must be
// re-resolved afterwards.
type Locator struct {
	FetchURL     string
	FetchHeaders map[string]string
	ExpiresAt    time.Time
}

func (l Locator) clone() Locator {
	out := l
	if l.FetchHeaders != nil {
		out.FetchHeaders = make(map[string]string, len(l.FetchHeaders))
		for k, v := range l.FetchHeaders {
			out.FetchHeaders[k] = v
		}
	}
	return out
}

// Resolver turns an upstream source identifier into a fetchable Locator.
// Implementations own format selection and any provider-specific mechanics;
// callers treat them as opaque.
type Resolver interface {
	Resolve(ctx context.Context, sourceID string) (Locator, error)
}
