// internal/adapters/cms/client.go
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"guesthouse/internal/adapters/httpretry"
	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
)

type Client struct {
	base    string
	dataset string
	hc      *http.Client
	token   string
	rl      *rate.Limiter
}

// New builds a client for the CMS query API at base (".../v2024-01-01").
// The token is optional for public datasets.
func New(base, dataset, token string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("CMS base URL is required")
	}
	if dataset == "" {
		return nil, fmt.Errorf("CMS dataset is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		dataset: dataset,
		hc:      &http.Client{Timeout: 20 * time.Second},
		token:   token,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Query fetches every published document of type t, already projected into
// the shape the mappers expect.
func (c *Client) Query(ctx context.Context, t domain.DocType) ([]map[string]any, error) {
	q, ok := QueryFor(t)
	if !ok {
		return nil, fmt.Errorf("cms: no query for document type %q", t)
	}
	u := fmt.Sprintf("%s/data/query/%s?%s", c.base, url.PathEscape(c.dataset), url.Values{"query": {q}}.Encode())

	var out struct {
		Result []map[string]any `json:"result"`
	}
	start := time.Now()
	status, err := c.get(ctx, u, &out)
	observability.ObserveExternal("cms", string(t), status, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// ---- Internals ----

var (
	ErrNotFound     = fmt.Errorf("cms: %w", domain.ErrNotFound)
	ErrUnauthorized = fmt.Errorf("cms: unauthorized: %w", domain.ErrAccessDenied)
	ErrForbidden    = fmt.Errorf("cms: forbidden: %w", domain.ErrAccessDenied)
)

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
// The returned status is the last HTTP status seen (0 when none).
func (c *Client) get(ctx context.Context, rawURL string, out any) (int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return 0, err
	}

	var (
		lastErr    error
		lastStatus int
	)
	for i := 0; i < httpretry.MaxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "guesthouse-ingestor/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return lastStatus, ctx.Err()
			}
			lastErr = err
			if i < httpretry.MaxAttempts-1 && httpretry.SleepCtx(ctx, httpretry.Backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return lastStatus, ctx.Err()
			}
			return lastStatus, lastErr
		}
		lastStatus = resp.StatusCode

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return lastStatus, fmt.Errorf("cms: decode response: %w", err)
			}
			return lastStatus, nil

		case http.StatusNotFound:
			resp.Body.Close()
			return lastStatus, ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return lastStatus, ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return lastStatus, ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := httpretry.RetryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = httpretry.Backoff(i)
			}
			lastErr = fmt.Errorf("cms: remote %d", resp.StatusCode)
			if i < httpretry.MaxAttempts-1 && httpretry.SleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return lastStatus, ctx.Err()
			}
			return lastStatus, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return lastStatus, fmt.Errorf("cms: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastStatus, lastErr
}
