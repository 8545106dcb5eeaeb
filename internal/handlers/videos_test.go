package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HarshS16/VeilPlay/internal/models"
	"github.com/HarshS16/VeilPlay/internal/playback"
	"github.com/HarshS16/VeilPlay/internal/repositories"
	"github.com/HarshS16/VeilPlay/internal/videos"
)

type memoryVideoStore struct {
	videos map[string]models.Video
	order  []string
}

func newMemoryVideoStore() *memoryVideoStore {
	return &memoryVideoStore{videos: make(map[string]models.Video)}
}

func (s *memoryVideoStore) Create(_ context.Context, video models.Video) error {
	if _, exists := s.videos[video.ID]; exists {
		return repositories.ErrConflict
	}
	s.videos[video.ID] = video
	s.order = append(s.order, video.ID)
	return nil
}

func (s *memoryVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *memoryVideoStore) ListActive(_ context.Context, limit int) ([]models.Video, error) {
	var list []models.Video
	for i := len(s.order) - 1; i >= 0 && len(list) < limit; i-- {
		video := s.videos[s.order[i]]
		if video.IsActive {
			list = append(list, video)
		}
	}
	return list, nil
}

type metadataStub struct {
	meta videos.Metadata
	err  error
}

func (m metadataStub) Lookup(context.Context, string) (videos.Metadata, error) {
	return m.meta, m.err
}

type ingestorStub struct {
	enqueued []models.Video
	err      error
}

func (i *ingestorStub) Enqueue(_ context.Context, video models.Video) error {
	if i.err != nil {
		return i.err
	}
	i.enqueued = append(i.enqueued, video)
	return nil
}

func authedRequest(t *testing.T, sessions SessionManager, method, target string, body []byte) *http.Request {
	t.Helper()
	tokens, err := sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	return req
}

func TestVideoHandlerDashboard(t *testing.T) {
	store := newMemoryVideoStore()
	manager := newTestSessionManager()
	now := time.Now().UTC()

	store.Create(context.Background(), models.Video{ID: "old", SourceID: "src-old", Title: "Old", IsActive: true, CreatedAt: now.Add(-time.Hour)})
	store.Create(context.Background(), models.Video{ID: "hidden", SourceID: "src-hidden", IsActive: false, CreatedAt: now.Add(-30 * time.Minute)})
	store.Create(context.Background(), models.Video{ID: "new", SourceID: "src-new", Title: "New", IsActive: true, CreatedAt: now})

	handler := VideoHandler{Videos: store, Sessions: manager}

	req := authedRequest(t, manager, http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Videos []videoJSON `json:"videos"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Videos) != 2 {
		t.Fatalf("expected 2 active videos, got %d", len(resp.Videos))
	}
	if resp.Videos[0].ID != "new" || resp.Videos[1].ID != "old" {
		t.Fatalf("unexpected ordering: %+v", resp.Videos)
	}
	if strings.Contains(rec.Body.String(), "src-") {
		t.Fatal("dashboard response leaked a source identifier")
	}
}

func TestVideoHandlerDashboardRequiresAuth(t *testing.T) {
	handler := VideoHandler{Videos: newMemoryVideoStore(), Sessions: newTestSessionManager()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestVideoHandlerDetailsIssuesPlaybackToken(t *testing.T) {
	store := newMemoryVideoStore()
	manager := newTestSessionManager()
	tokenSvc := playback.NewTokenService("handler-test-secret", time.Hour)

	store.Create(context.Background(), models.Video{
		ID:           "clip",
		SourceID:     "upstream-id",
		Title:        "Clip",
		Description:  "A clip",
		ThumbnailURL: "https://img.upstream.example/clip.jpg",
		IsActive:     true,
	})

	handler := VideoHandler{Videos: store, Sessions: manager, Tokens: tokenSvc}

	req := authedRequest(t, manager, http.MethodGet, "/api/v1/video/clip", nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Details(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Video    videoJSON `json:"video"`
		Playback struct {
			Token     string `json:"token"`
			StreamURL string `json:"streamUrl"`
			PlayerURL string `json:"playerUrl"`
			ExpiresIn int    `json:"expires_in"`
		} `json:"playback"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Video.ID != "clip" {
		t.Fatalf("unexpected video: %+v", resp.Video)
	}
	if resp.Playback.Token == "" {
		t.Fatal("expected a playback token")
	}
	if resp.Playback.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", resp.Playback.ExpiresIn)
	}
	if !strings.HasPrefix(resp.Playback.StreamURL, "/video/clip/stream?token=") {
		t.Fatalf("unexpected stream url: %s", resp.Playback.StreamURL)
	}

	if _, err := tokenSvc.Verify(resp.Playback.Token, "clip", "user-1"); err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if strings.Contains(rec.Body.String(), "upstream-id") {
		t.Fatal("details response leaked the source identifier")
	}
}

func TestVideoHandlerDetailsUnknownVideo(t *testing.T) {
	manager := newTestSessionManager()
	handler := VideoHandler{Videos: newMemoryVideoStore(), Sessions: manager, Tokens: playback.NewTokenService("s", time.Hour)}

	req := authedRequest(t, manager, http.MethodGet, "/api/v1/video/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()

	handler.Details(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestVideoHandlerDetailsInactiveVideo(t *testing.T) {
	store := newMemoryVideoStore()
	manager := newTestSessionManager()
	store.Create(context.Background(), models.Video{ID: "retired", SourceID: "src", IsActive: false})

	handler := VideoHandler{Videos: store, Sessions: manager, Tokens: playback.NewTokenService("s", time.Hour)}

	req := authedRequest(t, manager, http.MethodGet, "/api/v1/video/retired", nil)
	req.SetPathValue("id", "retired")
	rec := httptest.NewRecorder()

	handler.Details(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestVideoHandlerCreate(t *testing.T) {
	store := newMemoryVideoStore()
	manager := newTestSessionManager()
	ingestor := &ingestorStub{}
	meta := metadataStub{meta: videos.Metadata{
		Title:       "Resolved Title",
		Description: "Resolved description",
		Thumbnail:   "https://img.upstream.example/resolved.jpg",
	}}

	handler := VideoHandler{Videos: store, Sessions: manager, Metadata: meta, Thumbs: ingestor}

	body, _ := json.Marshal(createVideoRequest{ID: "fresh", SourceID: "abc123"})
	req := authedRequest(t, manager, http.MethodPost, "/api/v1/videos", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := store.FindByID(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("expected video stored: %v", err)
	}
	if stored.Title != "Resolved Title" || stored.ThumbnailURL != "https://img.upstream.example/resolved.jpg" {
		t.Fatalf("expected metadata applied, got %+v", stored)
	}
	if stored.ThumbStatus != models.ThumbStatusPending {
		t.Fatalf("expected pending thumb status, got %q", stored.ThumbStatus)
	}

	if len(ingestor.enqueued) != 1 || ingestor.enqueued[0].ID != "fresh" {
		t.Fatalf("expected thumbnail mirror enqueued, got %+v", ingestor.enqueued)
	}
}

func TestVideoHandlerCreateRejectsBadID(t *testing.T) {
	manager := newTestSessionManager()
	handler := VideoHandler{Videos: newMemoryVideoStore(), Sessions: manager}

	body, _ := json.Marshal(createVideoRequest{ID: "bad id!", SourceID: "abc123"})
	req := authedRequest(t, manager, http.MethodPost, "/api/v1/videos", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestVideoHandlerCreateDuplicate(t *testing.T) {
	store := newMemoryVideoStore()
	manager := newTestSessionManager()
	store.Create(context.Background(), models.Video{ID: "dup", SourceID: "src", IsActive: true})

	handler := VideoHandler{Videos: store, Sessions: manager, Metadata: metadataStub{err: videos.ErrProviderUnavailable}}

	body, _ := json.Marshal(createVideoRequest{ID: "dup", SourceID: "other"})
	req := authedRequest(t, manager, http.MethodPost, "/api/v1/videos", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
}
