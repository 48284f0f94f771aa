package storage

import (
	"regexp"
	"strings"
	"unicode"
)

var identTokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// maxNormalizedQueryBytes bounds FTS query input per spec §6's "Query
// input normalization (FTS)": length-bounded, char-boundary-aware.
const maxNormalizedQueryBytes = 16 * 1024

// normalizeIdentifiers tokenizes text the way the parser's identifiers
// appear in source: snake_case split on underscores, camelCase split
// on case boundaries, all lowercased, non-alphanumeric stripped. Used
// both to index chunk content into chunks_fts and to normalize query
// text before an FTS MATCH.
func normalizeIdentifiers(text string) string {
	if len(text) > maxNormalizedQueryBytes {
		text = truncateAtRuneBoundary(text, maxNormalizedQueryBytes)
	}

	var tokens []string
	for _, word := range identTokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return strings.Join(tokens, " ")
}

func truncateAtRuneBoundary(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !isRuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func splitCodeToken(token string) []string {
	var result []string
	if strings.Contains(token, "_") {
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
