package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCitation   = regexp.MustCompile(`\[\[([^][]+)\]\]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SanitizePostgresText removes invalid UTF-8 sequences and NUL bytes, which
// PostgreSQL rejects in text parameters.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// StripCitationMarkers removes [[id]] citation tokens from text. Used when
// hashing evidence units so that two copies of the same passage with
// different citation markers compare equal.
func StripCitationMarkers(s string) string {
	return reCitation.ReplaceAllString(s, "")
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the result.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// Tokenize splits text into lowercase word tokens, dropping punctuation.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// TokenOverlap returns the Jaccard similarity of the token sets of a and b.
// Returns 0 when either side has no tokens.
func TokenOverlap(a, b string) float64 {
	ta := Tokenize(a)
	tb := Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Min returns the smaller of two ints.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
