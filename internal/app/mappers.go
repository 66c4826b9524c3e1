package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"guesthouse/internal/domain"
)

/********** alias registries (single source of truth) **********/

var docAliases = map[string][]string{
	"id":    {"_id", "id"},
	"rev":   {"_rev", "rev"},
	"house": {"house", "house.slug", "house.slug.current"},
	"rank":  {"rank", "orderRank"},
	"url":   {"url", "image.asset.url", "imageUrl", "src"},
	"slug":  {"slug", "slug.current"},
	"cover": {"coverImage", "coverImage.asset.url"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func violation(op, format string, args ...any) error {
	return &domain.InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// rankAt reads an optional rank key. Anything but a string or null is a
// schema violation and is not coerced.
func rankAt(m map[string]any, id string) (*string, error) {
	for _, p := range docAliases["rank"] {
		switch v := lookupAny(m, p).(type) {
		case nil:
			continue
		case string:
			return &v, nil
		default:
			return nil, violation("map "+id, "rank key %q has type %T", p, v)
		}
	}
	return nil, nil
}

// localizedAt reads an internationalized array ([{_key, value}, ...]).
func localizedAt(m map[string]any, path, id string) (domain.LocalizedValue, error) {
	raw := lookupAny(m, path)
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, violation("map "+id, "%s is %T, want localized array", path, raw)
	}
	out := make(domain.LocalizedValue, 0, len(arr))
	for i, it := range arr {
		e, ok := it.(map[string]any)
		if !ok {
			return nil, violation("map "+id, "%s[%d] is %T", path, i, it)
		}
		key, _ := e["_key"].(string)
		if key == "" {
			key, _ = e["language"].(string)
		}
		if key == "" {
			return nil, violation("map "+id, "%s[%d] has no locale key", path, i)
		}
		switch v := e["value"].(type) {
		case string:
			out = append(out, domain.LocalizedEntry{Key: key, Value: v})
		case nil:
			// translation slot created but not filled in yet
		default:
			return nil, violation("map "+id, "%s[%d].value is %T", path, i, v)
		}
	}
	return out, nil
}

// categoryAt maps the dereferenced category; a dangling or absent reference
// yields nil and the item stays uncategorized.
func categoryAt(m map[string]any, id string) (*domain.Category, error) {
	raw := lookupAny(m, "category")
	if raw == nil {
		return nil, nil
	}
	cm, ok := raw.(map[string]any)
	if !ok {
		return nil, violation("map "+id, "category is %T", raw)
	}
	key := lookupStr(cm, "key")
	if key == "" {
		key = lookupStr(cm, "key.current")
	}
	if key == "" {
		return nil, violation("map "+id, "category without key")
	}
	rank, err := rankAt(cm, id)
	if err != nil {
		return nil, err
	}
	title, err := localizedAt(cm, "title", id)
	if err != nil {
		return nil, err
	}
	desc, err := localizedAt(cm, "description", id)
	if err != nil {
		return nil, err
	}
	return &domain.Category{Key: key, Rank: rank, Title: title, Description: desc}, nil
}

// localizedFields reads several localized fields at once.
func localizedFields(m map[string]any, id string, paths ...string) ([]domain.LocalizedValue, error) {
	out := make([]domain.LocalizedValue, len(paths))
	for i, p := range paths {
		v, err := localizedAt(m, p, id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

/********** document mappers **********/

type mapperFunc func(m map[string]any, base domain.Document) (domain.Document, error)

var mappers = map[domain.DocType]mapperFunc{
	domain.DocHouse:        mapHouse,
	domain.DocGalleryImage: mapGalleryImage,
	domain.DocAmenity:      mapAmenity,
	domain.DocPricingPlan:  mapPricingPlan,
	domain.DocFAQ:          mapFAQ,
}

// mapDocument validates and converts one CMS document of type t.
func mapDocument(t domain.DocType, m map[string]any, position int) (domain.Document, error) {
	fn, ok := mappers[t]
	if !ok {
		return domain.Document{}, fmt.Errorf("no mapper for document type %q", t)
	}
	id := deref(firstNonEmptyAlias(m, docAliases, "id"))
	if id == "" {
		return domain.Document{}, violation("map "+string(t), "document without _id at position %d", position)
	}
	base := domain.Document{
		ID:       id,
		Type:     t,
		Rev:      deref(firstNonEmptyAlias(m, docAliases, "rev")),
		Position: position,
	}
	return fn(m, base)
}

func withPayload(d domain.Document, v any) (domain.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal %s %s: %w", d.Type, d.ID, err)
	}
	d.Payload = b
	return d, nil
}

func mapHouse(m map[string]any, d domain.Document) (domain.Document, error) {
	slug := deref(firstNonEmptyAlias(m, docAliases, "slug"))
	if slug == "" {
		return domain.Document{}, violation("map "+d.ID, "house without slug")
	}
	rank, err := rankAt(m, d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	lv, err := localizedFields(m, d.ID, "name", "summary", "description")
	if err != nil {
		return domain.Document{}, err
	}
	d.House = &slug
	return withPayload(d, domain.House{
		Slug:        slug,
		Rank:        rank,
		Name:        lv[0],
		Summary:     lv[1],
		Description: lv[2],
		Address:     lookupStr(m, "address"),
		CoverImage:  deref(firstNonEmptyAlias(m, docAliases, "cover")),
	})
}

func mapGalleryImage(m map[string]any, d domain.Document) (domain.Document, error) {
	house := firstNonEmptyAlias(m, docAliases, "house")
	url := deref(firstNonEmptyAlias(m, docAliases, "url"))
	if url == "" {
		return domain.Document{}, violation("map "+d.ID, "gallery image without url")
	}
	alt, err := localizedAt(m, "alt", d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	cat, err := categoryAt(m, d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	d.House = house
	return withPayload(d, domain.CategorizedItem[domain.GalleryImage]{
		Value:    domain.GalleryImage{ID: d.ID, House: deref(house), URL: url, Alt: alt},
		Category: cat,
	})
}

func mapAmenity(m map[string]any, d domain.Document) (domain.Document, error) {
	house := firstNonEmptyAlias(m, docAliases, "house")
	name, err := localizedAt(m, "name", d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	cat, err := categoryAt(m, d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	d.House = house
	return withPayload(d, domain.CategorizedItem[domain.Amenity]{
		Value:    domain.Amenity{ID: d.ID, House: deref(house), Icon: lookupStr(m, "icon"), Name: name},
		Category: cat,
	})
}

func mapPricingPlan(m map[string]any, d domain.Document) (domain.Document, error) {
	house := firstNonEmptyAlias(m, docAliases, "house")
	lv, err := localizedFields(m, d.ID, "label", "unit")
	if err != nil {
		return domain.Document{}, err
	}
	cat, err := categoryAt(m, d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	amount := 0
	if f := getFloatFlexible(m, "amount", "price"); f != nil {
		amount = int(*f)
	}
	currency := strings.ToUpper(lookupStr(m, "currency"))
	if currency == "" {
		currency = "JPY"
	}
	d.House = house
	return withPayload(d, domain.CategorizedItem[domain.PricingPlan]{
		Value: domain.PricingPlan{
			ID:       d.ID,
			House:    deref(house),
			Label:    lv[0],
			Amount:   amount,
			Currency: currency,
			Unit:     lv[1],
		},
		Category: cat,
	})
}

func mapFAQ(m map[string]any, d domain.Document) (domain.Document, error) {
	lv, err := localizedFields(m, d.ID, "question", "answer")
	if err != nil {
		return domain.Document{}, err
	}
	cat, err := categoryAt(m, d.ID)
	if err != nil {
		return domain.Document{}, err
	}
	return withPayload(d, domain.CategorizedItem[domain.FAQ]{
		Value:    domain.FAQ{ID: d.ID, Question: lv[0], Answer: lv[1]},
		Category: cat,
	})
}

/********** read-side decoding **********/

// decodePayloads unmarshals stored payloads into T, skipping (and counting)
// rows that no longer decode.
func decodePayloads[T any](docs []domain.Document) ([]T, int) {
	out := make([]T, 0, len(docs))
	bad := 0
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Payload, &v); err != nil {
			bad++
			continue
		}
		out = append(out, v)
	}
	return out, bad
}

// mapDocuments maps a whole CMS result. A single invalid document fails the
// batch so the stored snapshot of the type stays untouched.
func mapDocuments(t domain.DocType, raw []map[string]any) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(raw))
	for i, m := range raw {
		d, err := mapDocument(t, m, i)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func documentIDs(docs []domain.Document) []string {
	return lo.Map(docs, func(d domain.Document, _ int) string { return d.ID })
}

// houseSlugs returns the distinct owning houses of docs, in first-seen order.
func houseSlugs(docs []domain.Document) []string {
	return lo.Uniq(lo.FilterMap(docs, func(d domain.Document, _ int) (string, bool) {
		return deref(d.House), d.House != nil && *d.House != ""
	}))
}
