package match

import (
	"strings"
	"unicode"
)

// NormalizeHeader normalizes a column header for matching.
// The pipeline:
// 1. Tokenize CamelCase and split on separators.
// 2. Case-fold to lower.
// 3. Drop every rune that is not a letter or digit.
func NormalizeHeader(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, tok := range tokenizeCamelCase(s) {
		for _, r := range tok {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
	}

	return b.String()
}

// NormalizeHeaderWithSuffixStrip normalizes and strips one trailing
// representation token such as "ids" or "json".
// Stripping never empties the header.
func NormalizeHeaderWithSuffixStrip(s string) string {
	normalized := NormalizeHeader(s)

	// Longer suffixes first so "ids" wins over "id".
	for _, suffix := range []string{"json", "list", "ids", "id"} {
		if strings.HasSuffix(normalized, suffix) && len(normalized) > len(suffix) {
			return strings.TrimSuffix(normalized, suffix)
		}
	}

	return normalized
}

// tokenizeCamelCase splits a CamelCase or camelCase string into tokens.
// Examples:
//   - "ClientID" -> ["Client", "ID"]
//   - "requestedTaskIDs" -> ["requested", "Task", "IDs"]
//   - "JSONAttributes" -> ["JSON", "Attributes"]
//   - "Max Load/Phase" -> ["Max", "Load", "Phase"]
func tokenizeCamelCase(s string) []string {
	var (
		tokens  []string
		current []rune
	)

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}

		if i > 0 && shouldStartNewToken(runes, i) {
			flush()
		}

		current = append(current, r)
	}

	flush()

	return tokens
}

// isSeparator returns true for runes that split header words.
func isSeparator(r rune) bool {
	switch r {
	case '_', '-', ' ', '.', '/', '\t':
		return true
	default:
		return false
	}
}

// shouldStartNewToken determines if a new token should start at position i.
func shouldStartNewToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if isSeparator(prev) || !unicode.IsUpper(r) {
		return false
	}

	// "orderID": lower to upper transition.
	if !unicode.IsUpper(prev) {
		return true
	}

	// "JSONAttributes": end of an acronym, unless the lowercase run is a plural "s" ("IDs").
	if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return !(runes[i+1] == 's' && (i+2 == len(runes) || !unicode.IsLower(runes[i+2])))
	}

	return false
}
