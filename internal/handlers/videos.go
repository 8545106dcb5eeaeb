package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/HarshS16/VeilPlay/internal/logging"
	"github.com/HarshS16/VeilPlay/internal/models"
	"github.com/HarshS16/VeilPlay/internal/repositories"
)

// VideoHandler provides catalog endpoints. Responses never include the
// upstream source identifier; clients only ever see the catalog id.
type VideoHandler struct {
	Videos   VideoStore
	Sessions SessionManager
	Metadata MetadataProvider
	Tokens   PlaybackTokens
	Thumbs   ThumbnailIngestor
	NowFunc  func() time.Time
}

const dashboardLimit = 50

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Dashboard handles GET /api/v1/dashboard.
func (h VideoHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, err := authenticate(ctx, h.Sessions, r); err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	list, err := h.Videos.ListActive(ctx, dashboardLimit)
	if err != nil {
		logger.Error("dashboard listing failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load videos"})
		return
	}

	payload := make([]videoJSON, 0, len(list))
	for _, video := range list {
		payload = append(payload, newVideoJSON(video))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": payload})
}

// Details handles GET /api/v1/video/{id}. A successful response carries a
// playback token the client presents to the stream endpoint.
func (h VideoHandler) Details(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, err := authenticate(ctx, h.Sessions, r)
	if err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	videoID := r.PathValue("id")
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("video lookup failed", "videoId", videoID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}
	if !video.IsActive {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
		return
	}

	token, err := h.Tokens.Issue(userID, video.ID)
	if err != nil {
		logger.Error("playback token issue failed", "videoId", video.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to authorize playback"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"video": newVideoJSON(video),
		"playback": map[string]any{
			"token":      token,
			"streamUrl":  fmt.Sprintf("/video/%s/stream?token=%s", video.ID, url.QueryEscape(token)),
			"playerUrl":  fmt.Sprintf("/video/%s/player?token=%s", video.ID, url.QueryEscape(token)),
			"expires_in": int(h.Tokens.TTL().Seconds()),
		},
	})
}

// Create handles POST /api/v1/videos. The source identifier is accepted on
// input only; metadata is resolved upstream and the thumbnail is scheduled
// for mirroring so later reads stay free of upstream references.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, err := authenticate(ctx, h.Sessions, r); err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.SourceID = strings.TrimSpace(req.SourceID)
	if req.ID == "" || req.SourceID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id and sourceId are required"})
		return
	}
	if !videoIDPattern.MatchString(req.ID) {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id may only contain letters, digits, hyphens and underscores"})
		return
	}

	now := h.now()
	video := models.Video{
		ID:          req.ID,
		SourceID:    req.SourceID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ThumbStatus: models.ThumbStatusPending,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if h.Metadata != nil {
		meta, err := h.Metadata.Lookup(ctx, video.SourceID)
		if err != nil {
			logger.Warn("metadata lookup failed", "videoId", video.ID, "error", err)
		} else {
			if video.Title == "" {
				video.Title = meta.Title
			}
			if video.Description == "" {
				video.Description = meta.Description
			}
			video.ThumbnailURL = meta.Thumbnail
		}
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "video already exists"})
			return
		}
		logger.Error("video create failed", "videoId", video.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to create video"})
		return
	}

	if h.Thumbs != nil && video.ThumbnailURL != "" {
		if err := h.Thumbs.Enqueue(ctx, video); err != nil {
			logger.Warn("thumbnail mirror enqueue failed", "videoId", video.ID, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"video": newVideoJSON(video)})
}

type createVideoRequest struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type videoJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newVideoJSON(video models.Video) videoJSON {
	return videoJSON{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		ThumbnailURL: video.Thumbnail(),
		CreatedAt:    video.CreatedAt,
	}
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
