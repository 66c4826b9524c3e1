//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"guesthouse/internal/adapters/cms"
	server "guesthouse/internal/adapters/http_server"
	"guesthouse/internal/adapters/mail"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/domain"
	mysqlrepo "guesthouse/internal/storage/mysql"
	"guesthouse/internal/testutil/mysqltest"
)

// ---------- fake CMS ----------

var typeRe = regexp.MustCompile(`_type == "([A-Za-z]+)"`)

func i18n(pairs ...string) []map[string]any {
	var out []map[string]any
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, map[string]any{"_key": pairs[i], "value": pairs[i+1]})
	}
	return out
}

type fakeCMS struct {
	mu      sync.Mutex
	results map[string][]map[string]any
}

func (f *fakeCMS) set(t string, docs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[t] = docs
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/data/query/production") {
		http.NotFound(w, r)
		return
	}
	m := typeRe.FindStringSubmatch(r.URL.Query().Get("query"))
	if m == nil {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	docs := f.results[m[1]]
	f.mu.Unlock()
	if docs == nil {
		docs = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": docs})
}

func house(id, slug, rank string, name ...string) map[string]any {
	return map[string]any{"_id": id, "_rev": "1", "slug": slug, "rank": rank, "name": i18n(name...)}
}

func image(id, houseSlug, url, catKey, catRank, catTitle string) map[string]any {
	return map[string]any{
		"_id": id, "_rev": "1", "house": houseSlug, "url": url,
		"category": map[string]any{"key": catKey, "rank": catRank, "title": i18n("en", catTitle)},
	}
}

// ---------- fake mail API ----------

type sentMail struct {
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
	Key     string   `json:"-"`
}

type fakeMail struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var m sentMail
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	m.Key = r.Header.Get("Idempotency-Key")
	f.mu.Lock()
	f.sent = append(f.sent, m)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"em_1"}`))
}

// ---------- the test ----------

func TestHTTP_EndToEnd_SyncBrowseContact(t *testing.T) {
	ctx := context.Background()
	db := mysqltest.Start(t)
	repo := mysqlrepo.New(db)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	locales := domain.NewLocales([]string{"en", "ja"}, "en")

	// CMS content
	fc := &fakeCMS{results: map[string][]map[string]any{}}
	fc.set("house",
		house("h-orange", "orange", "b", "en", "Orange House", "ja", "オレンジハウス"),
		house("h-lemon", "lemon", "a", "en", "Lemon House"),
	)
	fc.set("galleryImage",
		image("g-1", "orange", "https://cdn/1.jpg", "rooms", "b", "Rooms"),
		image("g-2", "orange", "https://cdn/2.jpg", "outside", "a", "Outside"),
		image("g-3", "orange", "https://cdn/3.jpg", "rooms", "b", "Rooms"),
	)
	cmsSrv := httptest.NewServer(fc)
	t.Cleanup(cmsSrv.Close)

	client, err := cms.New(cmsSrv.URL, "production", "token", 50)
	if err != nil {
		t.Fatalf("cms client: %v", err)
	}
	ing := app.NewIngestionService(client, repo, cache, locales)
	if _, err := ing.SyncAll(ctx, 2); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// mail
	fm := &fakeMail{}
	mailSrv := httptest.NewServer(fm)
	t.Cleanup(mailSrv.Close)
	mailer, err := mail.NewClient(mailSrv.URL, "key", 10)
	if err != nil {
		t.Fatalf("mail client: %v", err)
	}
	tpl, err := mail.NewTemplates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	boxes := domain.Mailboxes{Development: "dev@guesthouse.test", General: "hello@guesthouse.test", PlaceDomain: "guesthouse.test"}
	contact := app.NewContactService(boxes, domain.ModeProduction, tpl, mailer, repo, "noreply@guesthouse.test")

	// API
	q := app.NewQueryService(repo, cache, 0, locales)
	srv := server.New(nil)
	srv.MountHandlers(&server.Handlers{Q: q, C: contact, Locales: locales})
	api := httptest.NewServer(srv.Mux())
	t.Cleanup(api.Close)

	getJSON := func(path string, out any) int {
		t.Helper()
		res, err := http.Get(api.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusOK && out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
		return res.StatusCode
	}

	// houses in rank order, ja with en fallback
	var hs []domain.HouseView
	if code := getJSON("/v1/ja/houses", &hs); code != http.StatusOK {
		t.Fatalf("houses: %d", code)
	}
	var names []string
	for _, h := range hs {
		names = append(names, *h.Name)
	}
	if diff := cmp.Diff([]string{"Lemon House", "オレンジハウス"}, names); diff != "" {
		t.Fatalf("houses (-want +got):\n%s", diff)
	}

	// gallery grouped by category rank, CMS order inside a group
	var detail domain.HouseDetailView
	if code := getJSON("/v1/en/houses/orange", &detail); code != http.StatusOK {
		t.Fatalf("house: %d", code)
	}
	var got [][]string
	for _, g := range detail.Gallery {
		row := []string{g.Key}
		for _, it := range g.Items {
			row = append(row, it.ID)
		}
		got = append(got, row)
	}
	if diff := cmp.Diff([][]string{{"outside", "g-2"}, {"rooms", "g-1", "g-3"}}, got); diff != "" {
		t.Fatalf("gallery (-want +got):\n%s", diff)
	}

	// lemon is unpublished; the next sync drops it and evicts its cache entries
	if code := getJSON("/v1/en/houses/lemon", nil); code != http.StatusOK {
		t.Fatalf("lemon before resync: %d", code)
	}
	fc.set("house", house("h-orange", "orange", "b", "en", "Orange House"))
	if _, err := ing.SyncType(ctx, domain.DocHouse); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if code := getJSON("/v1/en/houses/lemon", nil); code != http.StatusNotFound {
		t.Fatalf("lemon after resync: want 404, got %d", code)
	}

	// contact for a single place goes to that place's mailbox
	body := `{"type":"tour","account":{"name":"Aiko","email":"aiko@example.com","nationality":"JP","gender":"female","age":29},
	          "places":["Orange"],"date":"2026-11-02","hour":"14:00"}`
	res, err := http.Post(api.URL+"/v1/contact", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST contact: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("contact: %d", res.StatusCode)
	}
	var ack struct{ ID string }
	if err := json.NewDecoder(res.Body).Decode(&ack); err != nil || ack.ID == "" {
		t.Fatalf("ack: %+v (%v)", ack, err)
	}

	if len(fm.sent) != 1 {
		t.Fatalf("want 1 mail, got %d", len(fm.sent))
	}
	m := fm.sent[0]
	if diff := cmp.Diff([]string{"orange@guesthouse.test"}, m.To); diff != "" {
		t.Fatalf("to (-want +got):\n%s", diff)
	}
	if m.Subject != "Tour request from Aiko" || m.ReplyTo != "aiko@example.com" || m.Key != ack.ID {
		t.Fatalf("unexpected mail: %+v", m)
	}
	if !strings.Contains(m.Text, "14:00") {
		t.Fatalf("text part should carry the hour: %q", m.Text)
	}

	var status, msgID string
	if err := db.QueryRowContext(ctx, `SELECT status, message_id FROM contact_submissions WHERE id = ?`, ack.ID).Scan(&status, &msgID); err != nil {
		t.Fatalf("submission row: %v", err)
	}
	if status != "sent" || msgID != "em_1" {
		t.Fatalf("submission row: %s %s", status, msgID)
	}
}
