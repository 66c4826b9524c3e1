package app_test

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"guesthouse/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu          sync.Mutex
	docs        map[domain.DocType][]domain.Document
	upserts     []domain.Document
	kept        map[domain.DocType][]string
	submissions []domain.SubmissionRecord
	listErr     error
	logErr      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: map[domain.DocType][]domain.Document{}, kept: map[domain.DocType][]string{}}
}

func (f *fakeRepo) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, docs...)
	for _, d := range docs {
		cur := f.docs[d.Type]
		i := slices.IndexFunc(cur, func(x domain.Document) bool { return x.ID == d.ID })
		if i >= 0 {
			cur[i] = d
			continue
		}
		f.docs[d.Type] = append(cur, d)
	}
	return nil
}

func (f *fakeRepo) DeleteStale(ctx context.Context, t domain.DocType, keep []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kept[t] = keep
	before := len(f.docs[t])
	f.docs[t] = slices.DeleteFunc(f.docs[t], func(d domain.Document) bool {
		return !slices.Contains(keep, d.ID)
	})
	return int64(before - len(f.docs[t])), nil
}

func (f *fakeRepo) LogSubmission(ctx context.Context, rec domain.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, rec)
	return f.logErr
}

func (f *fakeRepo) ListDocuments(ctx context.Context, t domain.DocType, house *string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Document
	for _, d := range f.docs[t] {
		if house == nil || d.House == nil || *d.House == *house {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeCache stores JSON like the redis adapter does.
type fakeCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakeCMS struct {
	results map[domain.DocType][]map[string]any
	errs    map[domain.DocType]error
}

func (f *fakeCMS) Query(ctx context.Context, t domain.DocType) ([]map[string]any, error) {
	if err := f.errs[t]; err != nil {
		return nil, err
	}
	return f.results[t], nil
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func lv(pairs ...string) domain.LocalizedValue {
	out := domain.LocalizedValue{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.LocalizedEntry{Key: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// raw CMS shape of an internationalized array
func i18n(pairs ...string) []any {
	var out []any
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, map[string]any{"_key": pairs[i], "value": pairs[i+1]})
	}
	return out
}

func storedDoc(t *testing.T, typ domain.DocType, id string, house *string, pos int, v any) domain.Document {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return domain.Document{ID: id, Type: typ, House: house, Rev: "r1", Position: pos, Payload: b}
}

var testLocales = domain.NewLocales([]string{"en", "ja"}, "en")
