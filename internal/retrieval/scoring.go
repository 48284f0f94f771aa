package retrieval

import (
	"math"
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// cosine computes the dot product of two L2-normalized vectors over
// their first dims components (the sentiment scalar in slot D is
// excluded from similarity), per spec §4.7 step 3.
func cosine(query, chunkEmb []float32, dims int) float64 {
	if len(query) < dims || len(chunkEmb) < dims {
		return 0
	}
	var dot float64
	for i := 0; i < dims; i++ {
		dot += float64(query[i]) * float64(chunkEmb[i])
	}
	if math.IsNaN(dot) || math.IsInf(dot, 0) {
		return 0
	}
	return dot
}

// nameScore implements the tiered tokenized name-match scale from
// spec §4.7 step 3: exact=1.0, prefix=0.9, contains-token=0.7,
// FTS-only fallback=0.5, no match=0.
func nameScore(queryText, chunkName string, matchedByFTSOnly bool) float64 {
	q := strings.ToLower(strings.TrimSpace(queryText))
	n := strings.ToLower(chunkName)
	if q == "" || n == "" {
		if matchedByFTSOnly {
			return 0.5
		}
		return 0
	}

	if q == n {
		return 1.0
	}
	if strings.HasPrefix(n, q) {
		return 0.9
	}
	if containsToken(n, q) {
		return 0.7
	}
	if matchedByFTSOnly {
		return 0.5
	}
	return 0
}

func containsToken(name, query string) bool {
	for _, tok := range splitIdentifierTokens(name) {
		if tok == query {
			return true
		}
	}
	return strings.Contains(name, query)
}

func splitIdentifierTokens(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			flush()
		case i > 0 && isUpper(r) && (isLower(runes[i-1]) || (i+1 < len(runes) && isLower(runes[i+1]))):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

// boostedScore applies the name-match multiplier to a semantic score,
// per spec §4.7 step 3: boosted = sem × (1 + name_weight × name_score).
func boostedScore(sem, name, nameWeight float64) float64 {
	return sem * (1 + nameWeight*name)
}

// matchesFilter reports whether chunk survives a post-scoring filter,
// per spec §4.7 step 6.
func matchesFilter(c *model.Chunk, f *Filter, globMatch func(pattern, path string) bool) bool {
	if f == nil {
		return true
	}
	if f.Language != "" && c.Language != f.Language {
		return false
	}
	if f.ChunkType != "" && c.ChunkType != f.ChunkType {
		return false
	}
	if f.PathGlob != "" && globMatch != nil && !globMatch(f.PathGlob, c.Origin) {
		return false
	}
	if len(f.ChunkIDs) > 0 {
		found := false
		for _, id := range f.ChunkIDs {
			if id == c.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
