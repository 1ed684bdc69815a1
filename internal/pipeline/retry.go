package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"go.uber.org/zap"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// fetchWithRetry fetches source, retrying retryable errors with backoff.
func fetchWithRetry(ctx context.Context, f fetch.Fetcher, source string, backoff func(int) time.Duration, log *zap.Logger) (string, error) {
	var lastErr error
	for attempt := range MaxRetries {
		markup, err := f.Fetch(ctx, source)
		if err == nil {
			return markup, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable fetch error", zap.String("source", source), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
