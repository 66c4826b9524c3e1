package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/domain"
)

// Queries is the read side served under /v1/{locale}.
type Queries interface {
	ListHouses(ctx context.Context, locale string) ([]domain.HouseView, error)
	GetHouse(ctx context.Context, slug, locale string) (domain.HouseDetailView, error)
	Gallery(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.ImageView], error)
	Amenities(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.AmenityView], error)
	Pricing(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.PriceView], error)
	FAQ(ctx context.Context, locale string) ([]domain.GroupView[domain.FAQView], error)
}

type Contacts interface {
	Submit(ctx context.Context, sub domain.Submission) (string, error)
}

type Handlers struct {
	Q       Queries
	C       Contacts
	Locales domain.Locales

	val *validation
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

const maxContactBody = 64 << 10

func (s *Server) MountHandlers(h *Handlers) {
	if h.val == nil {
		h.val = newValidation()
	}
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/contact", h.postContact)

		// locale-less URLs redirect to their negotiated locale
		r.Get("/houses", h.redirectToLocale)
		r.Get("/houses/*", h.redirectToLocale)
		r.Get("/faq", h.redirectToLocale)

		r.Route("/{locale}", func(r chi.Router) {
			r.Use(h.requireLocale)
			r.Get("/houses", h.listHouses)
			r.Get("/houses/{slug}", h.getHouse)
			r.Get("/houses/{slug}/gallery", h.gallery)
			r.Get("/houses/{slug}/amenities", h.amenities)
			r.Get("/houses/{slug}/pricing", h.pricing)
			r.Get("/faq", h.faq)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors to problems.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "request timed out")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// etagMatches reports whether an If-None-Match value lists etag.
func etagMatches(inm, etag string) bool {
	if inm == "" || etag == "" {
		return false
	}
	for _, c := range strings.Split(inm, ",") {
		c = strings.TrimSpace(c)
		if c == "*" || c == etag || "W/"+c == etag {
			return true
		}
	}
	return false
}

// writeCached writes v as JSON with a weak ETag, answering 304 when the
// client already has it.
func writeCached(w http.ResponseWriter, r *http.Request, locale string, v any) {
	etag, body := calcETagAndBody(v)
	w.Header().Set("Vary", "Accept-Language")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Language", locale)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// ---- locale handling ----

// localeOf returns the configured spelling of the {locale} URL segment.
func (h *Handlers) localeOf(r *http.Request) string {
	l, _ := h.Locales.Canonical(chi.URLParam(r, "locale"))
	return l
}

func (h *Handlers) requireLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l := chi.URLParam(r, "locale"); !h.Locales.Supports(l) {
			writeProblem(w, http.StatusNotFound, "Not Found", "unsupported locale "+l)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// negotiate: ?lang= first, then Accept-Language, then the default locale.
func (h *Handlers) negotiate(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return h.Locales.Negotiate(lang)
	}
	return h.Locales.Negotiate(r.Header.Get("Accept-Language"))
}

func (h *Handlers) redirectToLocale(w http.ResponseWriter, r *http.Request) {
	locale := h.negotiate(r)
	q := r.URL.Query()
	q.Del("lang")
	target := "/v1/" + locale + strings.TrimPrefix(r.URL.Path, "/v1")
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	w.Header().Set("Vary", "Accept-Language")
	http.Redirect(w, r, target, http.StatusFound)
}

// ---- content ----

func (h *Handlers) listHouses(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.ListHouses(r.Context(), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

func (h *Handlers) getHouse(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.GetHouse(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

func (h *Handlers) gallery(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.Gallery(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

func (h *Handlers) amenities(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.Amenities(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

func (h *Handlers) pricing(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.Pricing(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

func (h *Handlers) faq(w http.ResponseWriter, r *http.Request) {
	locale := h.localeOf(r)
	out, err := h.Q.FAQ(r.Context(), locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, locale, out)
}

// ---- contact ----

func (h *Handlers) postContact(w http.ResponseWriter, r *http.Request) {
	locale := h.negotiate(r)
	sub, err := h.val.decodeSubmission(http.MaxBytesReader(w, r.Body, maxContactBody))
	if err != nil {
		if fields := h.val.fieldErrors(err, locale); fields != nil {
			writeProblemBody(w, problem{
				Type:   "about:blank",
				Title:  "Invalid submission",
				Status: http.StatusBadRequest,
				Detail: firstMessage(fields),
				Errors: fields,
			})
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid submission", err.Error())
		return
	}

	id, err := h.C.Submit(r.Context(), sub)
	if err != nil {
		if errors.Is(err, domain.ErrInvariant) {
			writeError(w, r, err)
			return
		}
		log.Warn().Str("id", id).Err(err).Msg("contact submission not delivered")
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "the message could not be delivered, please try again later")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"id": id}); err != nil {
		log.Error().Err(err).Msg("failed to write contact response")
	}
}

// firstMessage picks a deterministic message for the problem detail.
func firstMessage(fields map[string]string) string {
	first := ""
	for k := range fields {
		if first == "" || k < first {
			first = k
		}
	}
	return fields[first]
}
