package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// defaultFormat prefers a broadly playable mp4 capped at 720p, falling back
// to whatever the upstream offers.
const defaultFormat = "best[ext=mp4][height<=720]/best[ext=mp4]/best"

const defaultWatchURL = "https://www.youtube.com/watch?v=%s"

// YTDLPResolver resolves stream locators by shelling out to the yt-dlp CLI.
type YTDLPResolver struct {
	Binary   string
	Format   string
	WatchURL string
	Run      CommandRunner
	Timeout  time.Duration
}

// NewYTDLPResolver constructs a Resolver that shells out to yt-dlp.
func NewYTDLPResolver(binary string, timeout time.Duration) *YTDLPResolver {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YTDLPResolver{
		Binary:   binary,
		Format:   defaultFormat,
		WatchURL: defaultWatchURL,
		Run:      defaultCommandRunner,
		Timeout:  timeout,
	}
}

type ytdlpFormat struct {
	URL         string            `json:"url"`
	Ext         string            `json:"ext"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

// Resolve executes yt-dlp for the source identifier and extracts the direct
// stream URL together with the headers required to fetch it.
func (r *YTDLPResolver) Resolve(ctx context.Context, sourceID string) (Locator, error) {
	if r == nil {
		return Locator{}, ErrResolverUnavailable
	}
	if r.Run == nil {
		r.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	watchURL := fmt.Sprintf(r.WatchURL, sourceID)
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-playlist",
		"--skip-download",
		"-f", r.Format,
		watchURL,
	}

	out, err := r.Run(execCtx, r.Binary, args...)
	if err != nil {
		return Locator{}, fmt.Errorf("yt-dlp resolve: %w", err)
	}

	var payload struct {
		URL         string            `json:"url"`
		HTTPHeaders map[string]string `json:"http_headers"`
		Formats     []ytdlpFormat     `json:"formats"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return Locator{}, fmt.Errorf("parse yt-dlp response: %w", err)
	}

	if payload.URL != "" {
		return Locator{FetchURL: payload.URL, FetchHeaders: payload.HTTPHeaders}, nil
	}

	// yt-dlp sometimes reports the selection only in the formats array.
	// Highest-quality entries come last, so walk it in reverse, mp4 first.
	if loc, ok := pickFormat(payload.Formats, payload.HTTPHeaders, true); ok {
		return loc, nil
	}
	if loc, ok := pickFormat(payload.Formats, payload.HTTPHeaders, false); ok {
		return loc, nil
	}

	return Locator{}, errors.New("yt-dlp produced no stream url")
}

func pickFormat(formats []ytdlpFormat, fallbackHeaders map[string]string, mp4Only bool) (Locator, bool) {
	for i := len(formats) - 1; i >= 0; i-- {
		f := formats[i]
		if f.URL == "" {
			continue
		}
		if mp4Only && f.Ext != "mp4" {
			continue
		}
		headers := f.HTTPHeaders
		if headers == nil {
			headers = fallbackHeaders
		}
		return Locator{FetchURL: f.URL, FetchHeaders: headers}, true
	}
	return Locator{}, false
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
