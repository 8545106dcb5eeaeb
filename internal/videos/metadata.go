package videos

import "context"

// Metadata captures the subset of video details VeilPlay stores for a catalog entry.
type Metadata struct {
	Title       string
	Description string
	Thumbnail   string
}

// Provider returns metadata for the supplied upstream source identifier.
type Provider interface {
	Lookup(ctx context.Context, sourceID string) (Metadata, error)
}
