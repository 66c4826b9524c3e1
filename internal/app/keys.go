package app

import (
	"fmt"
	"strings"
)

// cache key layout: <resource>:[<house>:]<locale>

func housesKey(locale string) string { return "houses:" + strings.ToLower(locale) }

func faqKey(locale string) string { return "faq:" + strings.ToLower(locale) }

func houseKey(resource, slug, locale string) string {
	return fmt.Sprintf("%s:%s:%s", resource, slug, strings.ToLower(locale))
}

// per-house resources
var houseResources = []string{"house", "gallery", "amenities", "pricing"}
