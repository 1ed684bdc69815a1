// Package fetch supplies raw repertory markup from the web or from disk.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is returned when the source does not exist.
var ErrNotFound = errors.New("source not found")

// Fetcher returns the decoded markup for a URL or local path.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (string, error)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Unwrap maps 404 and 410 to ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone {
		return ErrNotFound
	}
	return nil
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Auto dispatches http(s) URLs to HTTP and everything else to File.
type Auto struct {
	HTTP Fetcher
	File Fetcher
}

func (a *Auto) Fetch(ctx context.Context, source string) (string, error) {
	if IsRemote(source) {
		return a.HTTP.Fetch(ctx, source)
	}
	return a.File.Fetch(ctx, source)
}

// ErrorKind classifies a fetch error for metrics: "not_found", "status",
// "canceled" or "transport".
func ErrorKind(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
