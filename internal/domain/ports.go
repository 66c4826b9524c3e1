package domain

import (
	"context"
	"time"
)

type ContentRepository interface {
	// Write paths
	UpsertDocuments(ctx context.Context, docs []Document) error
	DeleteStale(ctx context.Context, t DocType, keepIDs []string) (int64, error)
	LogSubmission(ctx context.Context, rec SubmissionRecord) error

	// Read paths. house == nil lists every document of the type.
	ListDocuments(ctx context.Context, t DocType, house *string) ([]Document, error)
}

type CMSClient interface {
	Query(ctx context.Context, t DocType) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Message is a rendered email ready for delivery.
type Message struct {
	ID      string // idempotency key, stable across delivery retries
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	// Send delivers msg and returns the provider's message id.
	Send(ctx context.Context, msg Message) (string, error)
}

// SubmissionRecord is the audit row written for every contact submission.
type SubmissionRecord struct {
	ID        string
	Kind      Kind
	To        string
	Email     string
	Status    string // sent|failed
	Error     *string
	MessageID *string
	Payload   []byte
	CreatedAt time.Time
}
