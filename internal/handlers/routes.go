package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	videos := VideoHandler{
		Videos:   deps.Videos,
		Sessions: deps.Sessions,
		Metadata: deps.Metadata,
		Tokens:   deps.Tokens,
		Thumbs:   deps.Thumbs,
	}
	playback := PlaybackHandler{
		Videos:   deps.Videos,
		Sessions: deps.Sessions,
		Tokens:   deps.Tokens,
		Locators: deps.Locators,
		Relay:    deps.Relay,
		Limiter:  deps.StreamLimiter,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/dashboard", videos.Dashboard)
	mux.HandleFunc("/api/v1/videos", videos.Create)
	mux.HandleFunc("/api/v1/video/{id}", videos.Details)
	mux.HandleFunc("/video/{id}/stream", playback.Stream)
	mux.HandleFunc("/video/{id}/proxy", playback.Proxy)
	mux.HandleFunc("/video/{id}/player", playback.Player)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Videos        VideoStore
	Metadata      MetadataProvider
	Tokens        PlaybackTokens
	Thumbs        ThumbnailIngestor
	Locators      LocatorSource
	Relay         StreamRelay
	AuthLimiter   RateLimiter
	StreamLimiter RateLimiter
}
