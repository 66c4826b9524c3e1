//go:build integration || !unit

package mysql_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"guesthouse/internal/domain"
	mysqlrepo "guesthouse/internal/storage/mysql"
	"guesthouse/internal/testutil/mysqltest"
)

func pstr(s string) *string { return &s }

func doc(id string, t domain.DocType, house *string, pos int, payload string) domain.Document {
	return domain.Document{ID: id, Type: t, House: house, Rev: "r-" + id, Position: pos, Payload: []byte(payload)}
}

func ids(docs []domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestRepo_MySQL_DocumentsLifecycle(t *testing.T) {
	repo := mysqlrepo.New(mysqltest.Start(t))
	ctx := context.Background()

	orange, lemon := pstr("orange"), pstr("lemon")
	if err := repo.UpsertDocuments(ctx, []domain.Document{
		doc("a-2", domain.DocAmenity, orange, 0, `{"value":{"id":"a-2"}}`),
		doc("a-1", domain.DocAmenity, nil, 1, `{"value":{"id":"a-1"}}`),
		doc("a-3", domain.DocAmenity, lemon, 2, `{"value":{"id":"a-3"}}`),
	}); err != nil {
		t.Fatalf("UpsertDocuments: %v", err)
	}

	// house filter includes shared rows; order follows position, not id
	got, err := repo.ListDocuments(ctx, domain.DocAmenity, orange)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if diff := cmp.Diff([]string{"a-2", "a-1"}, ids(got)); diff != "" {
		t.Fatalf("orange amenities (-want +got):\n%s", diff)
	}
	if got[1].House != nil || got[0].Rev != "r-a-2" {
		t.Fatalf("unexpected row: %+v", got)
	}

	// upsert moves a-3 to the front and rewrites its payload
	if err := repo.UpsertDocuments(ctx, []domain.Document{
		doc("a-3", domain.DocAmenity, lemon, -1, `{"value":{"id":"a-3","icon":"bath"}}`),
	}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	all, err := repo.ListDocuments(ctx, domain.DocAmenity, nil)
	if err != nil {
		t.Fatalf("ListDocuments all: %v", err)
	}
	if diff := cmp.Diff([]string{"a-3", "a-2", "a-1"}, ids(all)); diff != "" {
		t.Fatalf("all amenities (-want +got):\n%s", diff)
	}
	var payload struct {
		Value struct{ Icon string } `json:"value"`
	}
	if err := json.Unmarshal(all[0].Payload, &payload); err != nil || payload.Value.Icon != "bath" {
		t.Fatalf("payload not updated: %s (%v)", all[0].Payload, err)
	}

	// stale rows of the type go, other types stay
	if err := repo.UpsertDocuments(ctx, []domain.Document{doc("f-1", domain.DocFAQ, nil, 0, `{}`)}); err != nil {
		t.Fatalf("upsert faq: %v", err)
	}
	n, err := repo.DeleteStale(ctx, domain.DocAmenity, []string{"a-1"})
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 deleted, got %d", n)
	}
	if n, err := repo.DeleteStale(ctx, domain.DocFAQ, nil); err != nil || n != 1 {
		t.Fatalf("empty keep list should clear the type: n=%d err=%v", n, err)
	}
	left, _ := repo.ListDocuments(ctx, domain.DocAmenity, nil)
	if diff := cmp.Diff([]string{"a-1"}, ids(left)); diff != "" {
		t.Fatalf("left (-want +got):\n%s", diff)
	}
}

func TestRepo_MySQL_LogSubmission(t *testing.T) {
	db := mysqltest.Start(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	msg := "provider down"
	rec := domain.SubmissionRecord{
		ID:        "5f0c1c9e-6c1a-4d7e-9a55-0d7f3c8f2b11",
		Kind:      domain.KindTour,
		To:        "orange@guesthouse.test",
		Email:     "aiko@example.com",
		Status:    "failed",
		Error:     &msg,
		Payload:   []byte(`{"places":["orange"]}`),
		CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := repo.LogSubmission(ctx, rec); err != nil {
		t.Fatalf("LogSubmission: %v", err)
	}

	var (
		status, recipient string
		errText           *string
		created           time.Time
	)
	row := db.QueryRowContext(ctx, `SELECT status, recipient, error, created_at FROM contact_submissions WHERE id = ?`, rec.ID)
	if err := row.Scan(&status, &recipient, &errText, &created); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if status != "failed" || recipient != rec.To || errText == nil || *errText != msg || !created.Equal(rec.CreatedAt) {
		t.Fatalf("unexpected row: %s %s %v %s", status, recipient, errText, created)
	}

	// zero time falls back to CURRENT_TIMESTAMP
	rec2 := rec
	rec2.ID, rec2.CreatedAt, rec2.Error, rec2.Status = "0e9f8a1b-2c3d-4e5f-8a9b-0c1d2e3f4a5b", time.Time{}, nil, "sent"
	if err := repo.LogSubmission(ctx, rec2); err != nil {
		t.Fatalf("LogSubmission zero time: %v", err)
	}
}
