package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/HarshS16/VeilPlay/internal/logging"
	"github.com/HarshS16/VeilPlay/internal/playback"
	"github.com/HarshS16/VeilPlay/internal/repositories"
	"github.com/HarshS16/VeilPlay/internal/streams"
)

// PlaybackHandler serves the token-gated streaming surface. The stream
// endpoint hands out a proxy indirection for an authenticated caller; the
// proxy endpoint relays bytes on possession of a valid token alone.
type PlaybackHandler struct {
	Videos   VideoStore
	Sessions SessionManager
	Tokens   PlaybackTokens
	Locators LocatorSource
	Relay    StreamRelay
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Stream handles GET /video/{id}/stream. It validates the playback token
// against both the caller's session and the requested video, then responds
// with the proxy URL and catalog metadata. No upstream detail leaves this
// handler.
func (h PlaybackHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")

	if !allowRequest(h.Limiter, r, "stream") {
		logger.Warn("stream rate limited", "videoId", videoID, "ip", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, playbackError("rate_limited", "too many requests"))
		return
	}

	userID, err := authenticate(ctx, h.Sessions, r)
	if err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, playbackError("unauthorized", "authentication required"))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		respondJSON(ctx, w, http.StatusBadRequest, playbackError("token_missing", "playback token is required"))
		return
	}

	claims, err := h.Tokens.Verify(token, videoID, userID)
	if err != nil {
		kind := tokenErrorKind(err)
		logger.Warn("playback token rejected", "videoId", videoID, "kind", kind)
		respondJSON(ctx, w, http.StatusBadRequest, playbackError(kind, "playback token rejected"))
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, playbackError("not_found", "video not found"))
			return
		}
		logger.Error("video lookup failed", "videoId", videoID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, playbackError("internal", "unable to load video"))
		return
	}
	if !video.IsActive {
		respondJSON(ctx, w, http.StatusNotFound, playbackError("not_found", "video not found"))
		return
	}

	expiresIn := int(claims.ExpiresAt.Time.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"video_id":      video.ID,
		"title":         video.Title,
		"description":   video.Description,
		"thumbnail_url": video.Thumbnail(),
		"stream_url":    proxyURL(video.ID, token),
		"expires_in":    expiresIn,
	})
}

// Proxy handles GET /video/{id}/proxy. Possession of a valid token for the
// video is the only credential; there is no session check so media elements
// can fetch the URL directly. Errors are short plain-text bodies because the
// consumer is a playback surface, not a JSON client.
func (h PlaybackHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")
	logger = logger.With("videoId", videoID)
	logger.Debug("proxy request received")

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "playback token is required", http.StatusBadRequest)
		return
	}

	if _, err := h.Tokens.Verify(token, videoID, ""); err != nil {
		logger.Warn("proxy token rejected", "kind", tokenErrorKind(err))
		http.Error(w, "invalid playback token", http.StatusBadRequest)
		return
	}
	logger.Debug("proxy token valid")

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		logger.Error("video lookup failed", "error", err)
		http.Error(w, "unable to load video", http.StatusInternalServerError)
		return
	}
	if !video.IsActive {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}

	locator, err := h.Locators.GetOrResolve(ctx, video.SourceID)
	if err != nil {
		logger.Error("stream resolution failed", "error", err)
		http.Error(w, "unable to resolve stream", http.StatusInternalServerError)
		return
	}
	logger.Debug("proxy locator ready")

	clientRange := r.Header.Get("Range")
	upstream, err := h.Relay.Fetch(ctx, locator, clientRange)
	if err != nil {
		status, message := upstreamErrorStatus(err)
		logger.Error("upstream fetch failed", "error", err, "status", status)
		http.Error(w, message, status)
		return
	}
	defer upstream.Body.Close()

	logger.Debug("proxy streaming", "range", clientRange)
	written, err := h.Relay.Stream(w, upstream, clientRange)
	if err != nil {
		// Bytes already sent cannot be retracted; the client sees a
		// truncated body and is expected to re-request a range.
		logger.Warn("stream truncated", "bytes", written, "error", err)
		return
	}
	logger.Info("stream complete", "bytes", written)
}

// Player handles GET /video/{id}/player. It renders a minimal page whose
// video element references only the proxy URL.
func (h PlaybackHandler) Player(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "playback token is required", http.StatusBadRequest)
		return
	}

	if _, err := h.Tokens.Verify(token, videoID, ""); err != nil {
		logger.Warn("player token rejected", "videoId", videoID, "kind", tokenErrorKind(err))
		http.Error(w, "invalid playback token", http.StatusBadRequest)
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil || !video.IsActive {
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("video lookup failed", "videoId", videoID, "error", err)
			http.Error(w, "unable to load video", http.StatusInternalServerError)
			return
		}
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	err = playerTemplate.Execute(w, playerData{
		Title:     video.Title,
		StreamURL: proxyURL(video.ID, token),
		Poster:    video.Thumbnail(),
	})
	if err != nil {
		logger.Error("render player page", "videoId", videoID, "error", err)
	}
}

type playerData struct {
	Title     string
	StreamURL string
	Poster    string
}

var playerTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<video controls autoplay {{if .Poster}}poster="{{.Poster}}" {{end}}width="100%">
<source src="{{.StreamURL}}" type="video/mp4">
Your browser does not support HTML5 video.
</video>
</body>
</html>
`))

func proxyURL(videoID, token string) string {
	return fmt.Sprintf("/video/%s/proxy?token=%s", videoID, url.QueryEscape(token))
}

func playbackError(kind, message string) map[string]string {
	return map[string]string{"kind": kind, "error": message}
}

func tokenErrorKind(err error) string {
	switch {
	case errors.Is(err, playback.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, playback.ErrTokenBadSignature):
		return "token_bad_signature"
	case errors.Is(err, playback.ErrTokenWrongKind):
		return "token_wrong_kind"
	case errors.Is(err, playback.ErrTokenVideoMismatch):
		return "token_resource_mismatch"
	case errors.Is(err, playback.ErrTokenUserMismatch):
		return "token_subject_mismatch"
	default:
		return "token_malformed"
	}
}

func upstreamErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, streams.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "upstream timed out"
	case errors.Is(err, streams.ErrUpstreamStatus):
		return http.StatusBadGateway, "upstream rejected the request"
	case errors.Is(err, streams.ErrUpstreamConnection):
		return http.StatusBadGateway, "upstream connection failed"
	default:
		return http.StatusInternalServerError, "unable to fetch stream"
	}
}

func (h PlaybackHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
