// Package sanitizer normalizes free-text input before validation and
// storage. All functions are idempotent and never return errors; invalid
// input collapses to the empty string.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims leading and trailing whitespace and collapses
// internal whitespace runs to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName cleans room display names.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeLocation cleans room location labels.
func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}

// NormalizePurpose cleans booking purpose text. Control characters are
// dropped so purposes render cleanly in logs and event payloads.
func NormalizePurpose(purpose string) string {
	var b strings.Builder
	for _, r := range purpose {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return TrimAndNormalize(b.String())
}
