package streams

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// relayBufferSize bounds the per-stream copy buffer. Back-pressure from a
// slow client propagates to the upstream read through blocking writes, so
// the proxy never buffers more than this per request.
const relayBufferSize = 8 * 1024

// Relay fetches upstream video bytes and forwards them to clients. It keeps
// no per-request state; the http.Client it owns bounds connect, TLS and
// response-header times but imposes no overall deadline, since a healthy
// stream may outlive any fixed timeout.
type Relay struct {
	client *http.Client
}

// NewRelay constructs a Relay whose upstream fetches wait at most
// headerTimeout for response headers.
func NewRelay(headerTimeout time.Duration) *Relay {
	if headerTimeout <= 0 {
		headerTimeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Relay{client: &http.Client{Transport: transport}}
}

// Fetch issues the upstream request for the locator, forwarding the client's
// Range header when present. The supplied context should be the inbound
// request context so a client disconnect cancels the upstream fetch.
func (rl *Relay) Fetch(ctx context.Context, loc Locator, clientRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.FetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamConnection, err)
	}

	for name, value := range loc.FetchHeaders {
		req.Header.Set(name, value)
	}
	if clientRange != "" {
		req.Header.Set("Range", clientRange)
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamConnection, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return resp, nil
}

// Stream writes the proxied response headers and relays the upstream body to
// the client. Only a fixed set of headers crosses the boundary; anything
// identifying the upstream stays behind. The returned byte count covers what
// was written before EOF or failure; once streaming has begun a failure
// leaves the client with a truncated body, which callers log rather than mask.
func (rl *Relay) Stream(w http.ResponseWriter, upstream *http.Response, clientRange string) (int64, error) {
	header := w.Header()

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	header.Set("Content-Type", contentType)
	header.Set("Accept-Ranges", "bytes")
	header.Set("Access-Control-Allow-Origin", "*")

	if v := upstream.Header.Get("Content-Length"); v != "" {
		header.Set("Content-Length", v)
	}
	if v := upstream.Header.Get("Content-Range"); v != "" {
		header.Set("Content-Range", v)
	}

	status := http.StatusOK
	if clientRange != "" && upstream.StatusCode == http.StatusPartialContent {
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	buf := make([]byte, relayBufferSize)
	return copyBuffer(w, upstream.Body, buf)
}

// copyBuffer mirrors io.CopyBuffer but never delegates to ReadFrom/WriteTo,
// keeping the fixed buffer as the only in-flight data between the two sides.
func copyBuffer(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
