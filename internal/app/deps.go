package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarshS16/VeilPlay/internal/auth"
	"github.com/HarshS16/VeilPlay/internal/config"
	"github.com/HarshS16/VeilPlay/internal/db"
	"github.com/HarshS16/VeilPlay/internal/handlers"
	"github.com/HarshS16/VeilPlay/internal/middleware"
	"github.com/HarshS16/VeilPlay/internal/playback"
	"github.com/HarshS16/VeilPlay/internal/repositories"
	"github.com/HarshS16/VeilPlay/internal/storage"
	"github.com/HarshS16/VeilPlay/internal/streams"
	"github.com/HarshS16/VeilPlay/internal/videos"
)

// buildDependencies wires concrete implementations into the handler surface.
// The returned cleanup drains background workers and must be called during
// shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	videoRepo := repositories.NewPostgresVideoRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	metadata := videos.NewCachingProvider(
		videos.NewYTDLPProvider(cfg.YTDLPPath, cfg.YTDLPTimeout),
		cfg.MetadataCacheTTL,
	)

	// Thumbnail mirroring needs a bucket; without one the catalog simply
	// keeps serving upstream thumbnail URLs.
	var thumbs handlers.ThumbnailIngestor
	cleanup := func(context.Context) error { return nil }
	if cfg.ObjectStore.Bucket != "" {
		thumbStore, err := storage.NewThumbnailStore(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure thumbnail store: %w", err)
		}
		mirror := videos.NewThumbnailMirror(thumbStore, videoRepo, videos.MirrorConfig{}, slog.Default())
		thumbs = mirror
		cleanup = mirror.Shutdown
	} else {
		slog.Warn("thumbnail mirroring disabled: no object store bucket configured")
	}

	locators := streams.NewLocatorCache(
		streams.NewYTDLPResolver(cfg.YTDLPPath, cfg.YTDLPTimeout),
		cfg.StreamCacheTTL,
	)

	deps := handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Videos:        videoRepo,
		Metadata:      metadata,
		Tokens:        playback.NewTokenService(cfg.TokenSecret, cfg.PlaybackTokenTTL),
		Thumbs:        thumbs,
		Locators:      locators,
		Relay:         streams.NewRelay(cfg.UpstreamTimeout),
		AuthLimiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		StreamLimiter: middleware.NewIPRateLimiter(60, time.Minute, 30, 10*time.Minute),
	}

	return deps, cleanup, nil
}
