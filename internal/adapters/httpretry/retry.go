// Package httpretry holds the retry timing shared by the outbound HTTP clients.
package httpretry

import (
	"context"
	crand "crypto/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxAttempts is the number of tries per request, first one included.
const MaxAttempts = 4

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// SleepCtx waits for d or returns false early if ctx is done.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RetryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func RetryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Backoff returns an exponential delay for attempt i (200ms, 400ms, 800ms...)
// with up to +50% jitter from crypto/rand, safe for concurrent use.
func Backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
