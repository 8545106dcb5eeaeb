package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/HarshS16/VeilPlay/internal/models"
	"github.com/HarshS16/VeilPlay/internal/playback"
	"github.com/HarshS16/VeilPlay/internal/streams"
)

type locatorStub struct {
	locator streams.Locator
	err     error
	calls   int
}

func (l *locatorStub) GetOrResolve(context.Context, string) (streams.Locator, error) {
	l.calls++
	if l.err != nil {
		return streams.Locator{}, l.err
	}
	return l.locator, nil
}

type relayStub struct {
	fetchErr error
}

func (r relayStub) Fetch(context.Context, streams.Locator, string) (*http.Response, error) {
	return nil, r.fetchErr
}

func (relayStub) Stream(http.ResponseWriter, *http.Response, string) (int64, error) {
	return 0, nil
}

func catalogWith(t *testing.T, video models.Video) *memoryVideoStore {
	t.Helper()
	store := newMemoryVideoStore()
	if err := store.Create(context.Background(), video); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return store
}

func issuePlaybackToken(t *testing.T, svc *playback.TokenService, userID, videoID string) string {
	t.Helper()
	token, err := svc.Issue(userID, videoID)
	if err != nil {
		t.Fatalf("issue playback token: %v", err)
	}
	return token
}

// serveBytes returns an upstream that serves a fixed body and honors
// single-range requests the way a CDN would.
func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}

		var start, end int
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil || start < 0 || end >= len(body) || start > end {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		chunk := body[start : end+1]
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
		w.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(chunk)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPlaybackStreamReturnsProxyIndirection(t *testing.T) {
	manager := newTestSessionManager()
	tokenSvc := playback.NewTokenService("stream-test-secret", time.Hour)
	store := catalogWith(t, models.Video{
		ID:           "clip",
		SourceID:     "upstream-xyz",
		Title:        "Clip",
		Description:  "A clip",
		ThumbnailURL: "https://img.upstream.example/clip.jpg",
		IsActive:     true,
	})
	locators := &locatorStub{}

	handler := PlaybackHandler{Videos: store, Sessions: manager, Tokens: tokenSvc, Locators: locators}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := authedRequest(t, manager, http.MethodGet, "/video/clip/stream?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Stream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		VideoID      string `json:"video_id"`
		Title        string `json:"title"`
		StreamURL    string `json:"stream_url"`
		ThumbnailURL string `json:"thumbnail_url"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.VideoID != "clip" || resp.Title != "Clip" {
		t.Fatalf("unexpected metadata: %+v", resp)
	}
	if !strings.HasPrefix(resp.StreamURL, "/video/clip/proxy?token=") {
		t.Fatalf("expected proxy indirection, got %s", resp.StreamURL)
	}
	if resp.ExpiresIn <= 0 || resp.ExpiresIn > 3600 {
		t.Fatalf("unexpected expires_in: %d", resp.ExpiresIn)
	}
	if strings.Contains(rec.Body.String(), "upstream-xyz") {
		t.Fatal("stream response leaked the source identifier")
	}
	if locators.calls != 0 {
		t.Fatalf("stream endpoint should not resolve locators, got %d calls", locators.calls)
	}
}

func TestPlaybackStreamMissingToken(t *testing.T) {
	manager := newTestSessionManager()
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{}

	handler := PlaybackHandler{Videos: store, Sessions: manager, Tokens: playback.NewTokenService("s", time.Hour), Locators: locators}

	req := authedRequest(t, manager, http.MethodGet, "/video/clip/stream", nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Stream(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token_missing") {
		t.Fatalf("expected token_missing kind, got %s", rec.Body.String())
	}
	if locators.calls != 0 {
		t.Fatal("no resolver call expected for a missing token")
	}
}

func TestPlaybackStreamTokenForOtherVideo(t *testing.T) {
	manager := newTestSessionManager()
	tokenSvc := playback.NewTokenService("mismatch-secret", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})

	handler := PlaybackHandler{Videos: store, Sessions: manager, Tokens: tokenSvc}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "other-video")
	req := authedRequest(t, manager, http.MethodGet, "/video/clip/stream?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Stream(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token_resource_mismatch") {
		t.Fatalf("expected token_resource_mismatch kind, got %s", rec.Body.String())
	}
}

func TestPlaybackStreamTokenForOtherUser(t *testing.T) {
	manager := newTestSessionManager()
	tokenSvc := playback.NewTokenService("subject-secret", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})

	handler := PlaybackHandler{Videos: store, Sessions: manager, Tokens: tokenSvc}

	token := issuePlaybackToken(t, tokenSvc, "someone-else", "clip")
	req := authedRequest(t, manager, http.MethodGet, "/video/clip/stream?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Stream(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token_subject_mismatch") {
		t.Fatalf("expected token_subject_mismatch kind, got %s", rec.Body.String())
	}
}

func TestPlaybackStreamRequiresSession(t *testing.T) {
	manager := newTestSessionManager()
	tokenSvc := playback.NewTokenService("session-secret", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})

	handler := PlaybackHandler{Videos: store, Sessions: manager, Tokens: tokenSvc}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/stream?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Stream(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestPlaybackProxyFullBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = byte(i % 251)
	}
	upstream := serveBytes(t, body)

	tokenSvc := playback.NewTokenService("proxy-secret", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{locator: streams.Locator{FetchURL: upstream.URL}}

	handler := PlaybackHandler{
		Videos:   store,
		Tokens:   tokenSvc,
		Locators: locators,
		Relay:    streams.NewRelay(5 * time.Second),
	}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != len(body) {
		t.Fatalf("expected %d bytes, got %d", len(body), rec.Body.Len())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("expected Accept-Ranges bytes, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive CORS header, got %q", got)
	}
}

func TestPlaybackProxyRangeRequest(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = byte(i % 251)
	}
	upstream := serveBytes(t, body)

	tokenSvc := playback.NewTokenService("proxy-range-secret", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{locator: streams.Locator{FetchURL: upstream.URL}}

	handler := PlaybackHandler{
		Videos:   store,
		Tokens:   tokenSvc,
		Locators: locators,
		Relay:    streams.NewRelay(5 * time.Second),
	}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy?token="+token, nil)
	req.Header.Set("Range", "bytes=100-199")
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected status 206 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 100 {
		t.Fatalf("expected exactly 100 bytes, got %d", rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Fatalf("unexpected Content-Range: %q", got)
	}
}

func TestPlaybackProxyMissingToken(t *testing.T) {
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{}

	handler := PlaybackHandler{Videos: store, Tokens: playback.NewTokenService("s", time.Hour), Locators: locators}

	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy", nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if locators.calls != 0 {
		t.Fatal("no resolver call expected for a missing token")
	}
}

func TestPlaybackProxyTokenForOtherVideo(t *testing.T) {
	tokenSvc := playback.NewTokenService("proxy-mismatch", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{}

	handler := PlaybackHandler{Videos: store, Tokens: tokenSvc, Locators: locators}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "other")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if locators.calls != 0 {
		t.Fatal("no resolver call expected for a mismatched token")
	}
}

func TestPlaybackProxyResolutionFailure(t *testing.T) {
	tokenSvc := playback.NewTokenService("proxy-resolve", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{err: fmt.Errorf("%w: boom", streams.ErrResolutionFailed)}

	handler := PlaybackHandler{Videos: store, Tokens: tokenSvc, Locators: locators}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected plain text error body, got %q", ct)
	}
}

func TestPlaybackProxyUpstreamTimeout(t *testing.T) {
	tokenSvc := playback.NewTokenService("proxy-timeout", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})
	locators := &locatorStub{locator: streams.Locator{FetchURL: "http://upstream.example/v"}}

	handler := PlaybackHandler{
		Videos:   store,
		Tokens:   tokenSvc,
		Locators: locators,
		Relay:    relayStub{fetchErr: fmt.Errorf("%w: deadline", streams.ErrUpstreamTimeout)},
	}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/proxy?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504 got %d", rec.Code)
	}
}

func TestPlaybackProxyUnknownVideo(t *testing.T) {
	tokenSvc := playback.NewTokenService("proxy-unknown", time.Hour)
	locators := &locatorStub{}

	handler := PlaybackHandler{Videos: newMemoryVideoStore(), Tokens: tokenSvc, Locators: locators}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "ghost")
	req := httptest.NewRequest(http.MethodGet, "/video/ghost/proxy?token="+token, nil)
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()

	handler.Proxy(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	if locators.calls != 0 {
		t.Fatal("no resolver call expected for an unknown video")
	}
}

func TestPlaybackPlayerEmbedsOnlyProxyURL(t *testing.T) {
	tokenSvc := playback.NewTokenService("player-secret", time.Hour)
	store := catalogWith(t, models.Video{
		ID:           "clip",
		SourceID:     "upstream-abc",
		Title:        "Clip",
		ThumbnailURL: "https://img.upstream.example/clip.jpg",
		IsActive:     true,
	})

	handler := PlaybackHandler{Videos: store, Tokens: tokenSvc}

	token := issuePlaybackToken(t, tokenSvc, "user-1", "clip")
	req := httptest.NewRequest(http.MethodGet, "/video/clip/player?token="+token, nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Player(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}

	page := rec.Body.String()
	if !strings.Contains(page, "/video/clip/proxy?token=") {
		t.Fatal("player page must reference the proxy URL")
	}
	if strings.Contains(page, "upstream-abc") {
		t.Fatal("player page leaked the source identifier")
	}
}

func TestPlaybackPlayerRejectsBadToken(t *testing.T) {
	tokenSvc := playback.NewTokenService("player-bad", time.Hour)
	store := catalogWith(t, models.Video{ID: "clip", SourceID: "src", IsActive: true})

	handler := PlaybackHandler{Videos: store, Tokens: tokenSvc}

	req := httptest.NewRequest(http.MethodGet, "/video/clip/player?token=garbage", nil)
	req.SetPathValue("id", "clip")
	rec := httptest.NewRecorder()

	handler.Player(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}
