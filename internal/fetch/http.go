package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const userAgent = "kentetl/1.0 (+https://github.com/aadjones/kent-repertory-etl)"

// maxPageBytes caps one downloaded page. Repertory pages are well under 1MB.
const maxPageBytes = 8 << 20

// HTTPFetcher downloads pages politely: one shared rate limiter across all
// goroutines and a per-request timeout.
type HTTPFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPFetcher returns a fetcher allowing perSecond requests per second.
// A non-positive perSecond disables rate limiting.
func NewHTTPFetcher(timeout time.Duration, perSecond float64) *HTTPFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Fetch GETs url and decodes the body using the declared or sniffed charset.
// The URL fragment is never sent to the server.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	r, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("detect charset for %s: %w", url, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(data), nil
}
