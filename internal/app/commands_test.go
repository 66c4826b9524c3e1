package app_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"guesthouse/internal/app"
	"guesthouse/internal/domain"
)

func cmsHouse(id, slug string, rank any) map[string]any {
	return map[string]any{
		"_id":  id,
		"_rev": "rev-" + id,
		"slug": slug,
		"rank": rank,
		"name": i18n("en", "House "+slug, "ja", "ハウス "+slug),
	}
}

func cmsAmenity(id, house, catKey, catRank string) map[string]any {
	m := map[string]any{
		"_id":  id,
		"_rev": "r",
		"icon": "wifi",
		"name": i18n("en", "Wi-Fi"),
		"category": map[string]any{
			"key":   catKey,
			"rank":  catRank,
			"title": i18n("en", catKey),
		},
	}
	if house != "" {
		m["house"] = house
	}
	return m
}

func TestSyncType_UpsertsDeletesStaleAndInvalidates(t *testing.T) {
	repo := newFakeRepo()
	repo.docs[domain.DocHouse] = []domain.Document{
		storedDoc(t, domain.DocHouse, "h-old", ptr("old"), 0, domain.House{Slug: "old"}),
	}
	cache := &fakeCache{}
	_ = cache.Set(context.Background(), "house:old:en", "stale", 60)
	_ = cache.Set(context.Background(), "houses:ja", "stale", 60)

	cms := &fakeCMS{results: map[domain.DocType][]map[string]any{
		domain.DocHouse: {cmsHouse("h-1", "orange", "a"), cmsHouse("h-2", "lemon", nil)},
	}}
	ing := app.NewIngestionService(cms, repo, cache, testLocales)

	res, err := ing.SyncType(context.Background(), domain.DocHouse)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Synced != 2 || res.Deleted != 1 || res.Skipped {
		t.Fatalf("unexpected result: %+v", res)
	}
	if diff := cmp.Diff([]string{"h-1", "h-2"}, repo.kept[domain.DocHouse]); diff != "" {
		t.Fatalf("keep ids (-want +got):\n%s", diff)
	}
	if repo.upserts[1].Position != 1 || deref(repo.upserts[1].House) != "lemon" || repo.upserts[1].Rev != "rev-h-2" {
		t.Fatalf("unexpected stored doc: %+v", repo.upserts[1])
	}
	// the removed house is evicted as well as the new ones
	for _, k := range []string{"house:old:en", "houses:ja", "house:orange:ja", "pricing:lemon:en"} {
		if !slices.Contains(cache.deleted, k) {
			t.Fatalf("expected %q to be invalidated, got %v", k, cache.deleted)
		}
	}
	if cache.has("house:old:en") {
		t.Fatal("stale entry still cached")
	}
}

func TestSyncType_SkipsOnNotFoundAndAccessDenied(t *testing.T) {
	for _, e := range []error{
		fmt.Errorf("cms: %w", domain.ErrNotFound),
		fmt.Errorf("cms: %w", domain.ErrAccessDenied),
	} {
		repo := newFakeRepo()
		cms := &fakeCMS{errs: map[domain.DocType]error{domain.DocFAQ: e}}
		ing := app.NewIngestionService(cms, repo, &fakeCache{}, testLocales)

		res, err := ing.SyncType(context.Background(), domain.DocFAQ)
		if err != nil {
			t.Fatalf("expected skip, got %v", err)
		}
		if !res.Skipped {
			t.Fatalf("expected Skipped, got %+v", res)
		}
		if _, called := repo.kept[domain.DocFAQ]; called {
			t.Fatal("stale rows must not be deleted when the query is skipped")
		}
	}
}

func TestSyncType_OtherErrorsBubbleUp(t *testing.T) {
	boom := errors.New("connection reset")
	cms := &fakeCMS{errs: map[domain.DocType]error{domain.DocFAQ: boom}}
	ing := app.NewIngestionService(cms, newFakeRepo(), nil, testLocales)

	if _, err := ing.SyncType(context.Background(), domain.DocFAQ); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSyncType_MalformedRankAbortsWithoutWrites(t *testing.T) {
	repo := newFakeRepo()
	cms := &fakeCMS{results: map[domain.DocType][]map[string]any{
		domain.DocHouse: {cmsHouse("h-1", "orange", "a"), cmsHouse("h-2", "lemon", 3.0)},
	}}
	ing := app.NewIngestionService(cms, repo, &fakeCache{}, testLocales)

	_, err := ing.SyncType(context.Background(), domain.DocHouse)
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if len(repo.upserts) != 0 {
		t.Fatalf("nothing should be written, got %d docs", len(repo.upserts))
	}
}

func TestSyncAll_SyncsEveryType(t *testing.T) {
	repo := newFakeRepo()
	cms := &fakeCMS{results: map[domain.DocType][]map[string]any{
		domain.DocHouse:   {cmsHouse("h-1", "orange", "a")},
		domain.DocAmenity: {cmsAmenity("a-1", "orange", "net", "a"), cmsAmenity("a-2", "", "net", "a")},
	}}
	ing := app.NewIngestionService(cms, repo, &fakeCache{}, testLocales)

	results, err := ing.SyncAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(results) != len(domain.DocTypes) {
		t.Fatalf("want %d results, got %d", len(domain.DocTypes), len(results))
	}
	for i, r := range results {
		if r.Type != domain.DocTypes[i] {
			t.Fatalf("result %d: want %s, got %s", i, domain.DocTypes[i], r.Type)
		}
	}
	if got := len(repo.docs[domain.DocAmenity]); got != 2 {
		t.Fatalf("want 2 amenities stored, got %d", got)
	}
	if repo.docs[domain.DocAmenity][1].House != nil {
		t.Fatal("shared amenity must not be attached to a house")
	}
}

func TestSyncAll_ReturnsFirstError(t *testing.T) {
	boom := errors.New("cms down")
	cms := &fakeCMS{errs: map[domain.DocType]error{domain.DocPricingPlan: boom}}
	ing := app.NewIngestionService(cms, newFakeRepo(), nil, testLocales)

	results, err := ing.SyncAll(context.Background(), 4)
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if len(results) != len(domain.DocTypes) {
		t.Fatalf("results should cover every type, got %d", len(results))
	}
}
