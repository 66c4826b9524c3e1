package mail_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"guesthouse/internal/adapters/mail"
	"guesthouse/internal/domain"
)

func TestClient_Send(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if r.Header.Get("Idempotency-Key") != "msg-1" {
			t.Errorf("missing idempotency key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "provider-123"})
	}))
	defer ts.Close()

	c, err := mail.NewClient(ts.URL, "key", 100)
	if err != nil {
		t.Fatal(err)
	}
	id, err := c.Send(context.Background(), domain.Message{
		ID: "msg-1", From: "site@x.test", To: "orange@x.test", ReplyTo: "aiko@example.com",
		Subject: "Tour request from Aiko", HTML: "<p>hi</p>", Text: "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "provider-123" {
		t.Fatalf("id = %q", id)
	}
	if got["subject"] != "Tour request from Aiko" || got["reply_to"] != "aiko@example.com" {
		t.Fatalf("unexpected body: %v", got)
	}
	if to, _ := got["to"].([]any); len(to) != 1 || to[0] != "orange@x.test" {
		t.Fatalf("unexpected to: %v", got["to"])
	}
}

func TestClient_Send_RetriesTransient(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ok"})
	}))
	defer ts.Close()

	c, _ := mail.NewClient(ts.URL, "key", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := c.Send(ctx, domain.Message{ID: "m", To: "a@x.test"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("hits = %d", hits)
	}
}

func TestClient_Send_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAccessDenied},
		{http.StatusUnprocessableEntity, mail.ErrRejected},
	}
	for _, tt := range tests {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c, _ := mail.NewClient(ts.URL, "key", 100)
		_, err := c.Send(context.Background(), domain.Message{To: "a@x.test"})
		ts.Close()
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: want %v, got %v", tt.status, tt.want, err)
		}
	}
}
