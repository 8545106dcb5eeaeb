package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/HarshS16/VeilPlay/internal/models"
)

// ThumbnailStorage persists thumbnail bytes and returns a public location.
type ThumbnailStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ThumbRecorder persists mirror status updates for videos.
type ThumbRecorder interface {
	MarkThumbReady(ctx context.Context, videoID, location string) error
	MarkThumbFailed(ctx context.Context, videoID string) error
}

// MirrorConfig controls the concurrency characteristics of the mirror.
type MirrorConfig struct {
	QueueSize int
	Workers   int
}

// ThumbnailMirror copies upstream thumbnails into our own object storage in
// the background, so catalog responses need not reference the upstream CDN.
type ThumbnailMirror struct {
	storage  ThumbnailStorage
	recorder ThumbRecorder
	client   *http.Client
	logger   *slog.Logger

	jobs   chan models.Video
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var errMirrorClosed = errors.New("thumbnail mirror closed")

// NewThumbnailMirror constructs a background worker pool that re-hosts thumbnails.
func NewThumbnailMirror(storage ThumbnailStorage, recorder ThumbRecorder, cfg MirrorConfig, logger *slog.Logger) *ThumbnailMirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &ThumbnailMirror{
		storage:  storage,
		recorder: recorder,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		jobs:     make(chan models.Video, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	m.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go m.worker()
	}

	return m
}

// Enqueue schedules thumbnail mirroring for the supplied video.
func (m *ThumbnailMirror) Enqueue(ctx context.Context, video models.Video) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	case m.jobs <- video:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (m *ThumbnailMirror) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.cancel()
		close(m.jobs)
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (m *ThumbnailMirror) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case video, ok := <-m.jobs:
			if !ok {
				return
			}
			m.handle(video)
		}
	}
}

func (m *ThumbnailMirror) handle(video models.Video) {
	if m.storage == nil || m.recorder == nil {
		m.logger.Error("thumbnail mirror missing dependencies", "hasStorage", m.storage != nil, "hasRecorder", m.recorder != nil)
		return
	}
	if video.ThumbnailURL == "" {
		m.recordFailure(video.ID)
		return
	}

	location, err := m.mirror(video)
	if err != nil {
		m.logger.Error("thumbnail mirroring failed", "videoId", video.ID, "error", err)
		m.recordFailure(video.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.recorder.MarkThumbReady(ctx, video.ID, location); err != nil {
		m.logger.Error("record thumbnail ready", "videoId", video.ID, "error", err)
	}
}

func (m *ThumbnailMirror) mirror(video models.Video) (string, error) {
	ctx, cancel := context.WithTimeout(m.ctx, time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, video.ThumbnailURL, nil)
	if err != nil {
		return "", fmt.Errorf("build thumbnail request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}

	name := path.Join(video.ID, "thumb"+thumbExtension(resp.Header.Get("Content-Type"), video.ThumbnailURL))
	location, err := m.storage.Save(ctx, name, resp.Body)
	if err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}

	return location, nil
}

func (m *ThumbnailMirror) recordFailure(videoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.recorder.MarkThumbFailed(ctx, videoID); err != nil {
		m.logger.Error("record thumbnail failure", "videoId", videoID, "error", err)
	}
}

func thumbExtension(contentType, sourceURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		}
	}
	if ext := path.Ext(sourceURL); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}
