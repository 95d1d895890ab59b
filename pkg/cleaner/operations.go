// pkg/cleaner/operations.go
package cleaner

import (
	"regexp"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText trims, lower-cases and collapses internal whitespace runs
// to a single space
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRun.ReplaceAllString(s, " ")
}

// ApplyMapping returns the mapped value for s, or s itself if unmapped
func ApplyMapping(s string, mapping map[string]string) string {
	if mapped, ok := mapping[s]; ok {
		return mapped
	}
	return s
}

// CleanCategory normalizes a categorical value and applies the synonym
// table. It returns false when the value is empty after normalization.
func CleanCategory(s string, synonyms map[string]string) (string, bool) {
	normalized := NormalizeText(s)
	if normalized == "" {
		return "", false
	}
	return ApplyMapping(normalized, synonyms), true
}

// NormalizeCountry trims, collapses whitespace and upper-cases a country
// value. It returns false when the value is empty after normalization.
func NormalizeCountry(s string) (string, bool) {
	normalized := strings.ToUpper(whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " "))
	if normalized == "" {
		return "", false
	}
	return normalized, true
}

// ParseTimestamp tries each layout in order and returns the first
// successful parse as a UTC instant. Layouts without a zone are read as UTC.
// Empty or unparseable input returns false.
func ParseTimestamp(s string, formats []string) (time.Time, bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, false
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, cleaned, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// Helper functions

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
