package models

import "time"

// User represents an account within the VeilPlay platform.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is a piece of third-party-hosted content offered for playback.
// SourceID identifies the video at the upstream provider and must never be
// serialized into a client-facing response.
type Video struct {
	ID            string
	SourceID      string
	Title         string
	Description   string
	ThumbnailURL  string
	ThumbLocation string
	ThumbStatus   string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	ThumbStatusPending = "pending"
	ThumbStatusReady   = "ready"
	ThumbStatusFailed  = "failed"
)

// Thumbnail returns the client-facing thumbnail location, preferring the
// re-hosted copy so responses avoid referencing the upstream CDN.
func (v Video) Thumbnail() string {
	if v.ThumbStatus == ThumbStatusReady && v.ThumbLocation != "" {
		return v.ThumbLocation
	}
	return v.ThumbnailURL
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
