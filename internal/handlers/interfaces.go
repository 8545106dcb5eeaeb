package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/HarshS16/VeilPlay/internal/models"
	"github.com/HarshS16/VeilPlay/internal/playback"
	"github.com/HarshS16/VeilPlay/internal/streams"
	"github.com/HarshS16/VeilPlay/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues, refreshes and validates authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Validate(ctx context.Context, accessToken string) (string, error)
}

// VideoStore captures persistence for the playback catalog.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListActive(ctx context.Context, limit int) ([]models.Video, error)
}

// PlaybackTokens mints and checks the short-lived tokens that gate the proxy.
type PlaybackTokens interface {
	Issue(userID, videoID string) (string, error)
	Verify(token, videoID, userID string) (*playback.Claims, error)
	TTL() time.Duration
}

// LocatorSource resolves upstream fetch locations for source identifiers.
type LocatorSource interface {
	GetOrResolve(ctx context.Context, sourceID string) (streams.Locator, error)
}

// StreamRelay fetches upstream bytes and forwards them to a client.
type StreamRelay interface {
	Fetch(ctx context.Context, loc streams.Locator, clientRange string) (*http.Response, error)
	Stream(w http.ResponseWriter, upstream *http.Response, clientRange string) (int64, error)
}

// MetadataProvider resolves catalog details for upstream source identifiers.
type MetadataProvider interface {
	Lookup(ctx context.Context, sourceID string) (videos.Metadata, error)
}

// ThumbnailIngestor schedules background mirroring of video thumbnails.
type ThumbnailIngestor interface {
	Enqueue(ctx context.Context, video models.Video) error
}
