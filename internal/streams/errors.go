package streams

import "errors"

var (
	// ErrResolverUnavailable indicates no resolver is configured.
	ErrResolverUnavailable = errors.New("stream resolver unavailable")
	// ErrResolutionFailed indicates the resolver produced no locator. The
	// failure is never cached, so the next request retries.
	ErrResolutionFailed = errors.New("stream resolution failed")
	// ErrUpstreamTimeout indicates the upstream fetch exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream fetch timed out")
	// ErrUpstreamConnection indicates the upstream connection could not be
	// established or was reset before any bytes were relayed.
	ErrUpstreamConnection = errors.New("upstream connection failed")
	// ErrUpstreamStatus indicates upstream answered with an error status.
	ErrUpstreamStatus = errors.New("upstream returned unexpected status")
)
