package usecase

import (
	"fmt"
	"regexp"
	"strings"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
	specialCharsRegex    = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~` + "`" + `]`)
)

// cleanQuery sanitizes a free-text query before it reaches upstream
// APIs. Some providers sit behind proxies that reject raw '&' and
// similar characters with a 400.
func cleanQuery(query string) string {
	query = strings.ReplaceAll(query, "&", " and ")
	query = specialCharsRegex.ReplaceAllString(query, " ")
	query = multipleSpacesRegex.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

// barcodeCacheKey is the cache key for a single product code.
func barcodeCacheKey(code string) string {
	return fmt.Sprintf("barcode:%s", strings.TrimSpace(code))
}

// normalizeForKey lowercases and strips special characters so
// equivalent spellings collapse to one key component.
func normalizeForKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// dedupeKey identifies a food across providers by name and brand.
// Best-effort: distinct products sharing both collapse together.
func dedupeKey(name, brand string) string {
	b := normalizeForKey(brand)
	if b == "" {
		b = "no-brand"
	}
	return normalizeForKey(name) + "-" + b
}
