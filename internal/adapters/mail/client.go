package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"guesthouse/internal/adapters/httpretry"
	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
)

// Client delivers messages through an HTTP transactional-mail API
// (POST {base}/emails with a JSON body, bearer auth).
type Client struct {
	base string
	key  string
	hc   *http.Client
	rl   *rate.Limiter
}

func NewClient(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("mail API URL is required")
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  key,
		hc:   &http.Client{Timeout: 15 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrUnauthorized = fmt.Errorf("mail: unauthorized: %w", domain.ErrAccessDenied)
	ErrRejected     = errors.New("mail: message rejected")
)

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send posts msg, retrying 429 and transient 5xx. msg.ID is sent as the
// Idempotency-Key so a retried request cannot deliver twice.
func (c *Client) Send(ctx context.Context, msg domain.Message) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	id, status, err := c.post(ctx, c.base+"/emails", msg.ID, body)
	observability.ObserveExternal("mail", "send", status, time.Since(start))
	return id, err
}

func (c *Client) post(ctx context.Context, url, idemKey string, body []byte) (string, int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", 0, err
	}

	var (
		lastErr    error
		lastStatus int
	)
	for i := 0; i < httpretry.MaxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.key != "" {
			req.Header.Set("Authorization", "Bearer "+c.key)
		}
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", lastStatus, ctx.Err()
			}
			lastErr = err
			if i < httpretry.MaxAttempts-1 && httpretry.SleepCtx(ctx, httpretry.Backoff(i)) {
				continue
			}
			return "", lastStatus, lastErr
		}
		lastStatus = resp.StatusCode

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var out sendResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil && !errors.Is(err, io.EOF) {
				return "", lastStatus, fmt.Errorf("mail: decode response: %w", err)
			}
			return out.ID, lastStatus, nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return "", lastStatus, ErrUnauthorized

		case httpretry.Retryable(resp.StatusCode):
			wait := httpretry.RetryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = httpretry.Backoff(i)
			}
			lastErr = fmt.Errorf("mail: remote %d", resp.StatusCode)
			if i < httpretry.MaxAttempts-1 && httpretry.SleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", lastStatus, ctx.Err()
			}
			return "", lastStatus, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", lastStatus, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return "", lastStatus, lastErr
}
