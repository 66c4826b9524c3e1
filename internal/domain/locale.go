package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// LocalizedEntry is one translation of a field, keyed by locale code.
type LocalizedEntry struct {
	Key   string `json:"_key"`
	Value string `json:"value"`
}

// LocalizedValue is a per-locale list of translations. Keys are expected to
// be unique; when they are not the first match wins.
type LocalizedValue []LocalizedEntry

// ResolveLocale returns the value for requested, falling back to the
// fallback locale. A missing translation is reported with ok=false.
func ResolveLocale(values LocalizedValue, requested, fallback string) (string, bool) {
	if v, ok := values.lookup(requested); ok {
		return v, true
	}
	if strings.EqualFold(requested, fallback) {
		return "", false
	}
	return values.lookup(fallback)
}

// lookup matches locale codes case-insensitively ("zh-TW" and "zh-tw").
func (v LocalizedValue) lookup(locale string) (string, bool) {
	for _, e := range v {
		if strings.EqualFold(e.Key, locale) {
			return e.Value, true
		}
	}
	return "", false
}

func (v LocalizedValue) Resolve(requested, fallback string) (string, bool) {
	return ResolveLocale(v, requested, fallback)
}

// ResolvePtr is Resolve for read models: nil means no translation.
func (v LocalizedValue) ResolvePtr(requested, fallback string) *string {
	s, ok := ResolveLocale(v, requested, fallback)
	if !ok {
		return nil
	}
	return &s
}

// Locales is the set of locales the site is published in.
type Locales struct {
	codes   []string // default first
	matcher language.Matcher
}

// NewLocales keeps codes as configured; duplicates are matched ignoring case.
func NewLocales(supported []string, def string) Locales {
	l := Locales{codes: []string{strings.TrimSpace(def)}}
	for _, c := range supported {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := l.Canonical(c); !dup {
			l.codes = append(l.codes, c)
		}
	}
	codes := l.codes
	tags := make([]language.Tag, len(codes))
	for i, c := range codes {
		tags[i] = language.Make(c)
	}
	return Locales{codes: codes, matcher: language.NewMatcher(tags)}
}

func (l Locales) Default() string { return l.codes[0] }

// All returns the supported codes, default first.
func (l Locales) All() []string { return append([]string(nil), l.codes...) }

func (l Locales) Supports(code string) bool {
	_, ok := l.Canonical(code)
	return ok
}

// Canonical returns the configured spelling of code.
func (l Locales) Canonical(code string) (string, bool) {
	for _, c := range l.codes {
		if strings.EqualFold(c, code) {
			return c, true
		}
	}
	return "", false
}

// Negotiate picks the best supported locale for an Accept-Language style
// header value, or the default when nothing matches.
func (l Locales) Negotiate(accept string) string {
	if strings.TrimSpace(accept) == "" {
		return l.Default()
	}
	_, idx := language.MatchStrings(l.matcher, accept)
	if idx < 0 || idx >= len(l.codes) {
		return l.Default()
	}
	return l.codes[idx]
}
