package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

func TestNameScore_TieredMatchLevels(t *testing.T) {
	// Given/When/Then: each match tier returns its documented score
	assert.Equal(t, 1.0, nameScore("parseFile", "parseFile", false))
	assert.Equal(t, 0.9, nameScore("parse", "parseFile", false))
	assert.Equal(t, 0.7, nameScore("file", "parse_file", false))
	assert.Equal(t, 0.5, nameScore("zzz", "parseFile", true))
	assert.Equal(t, 0.0, nameScore("zzz", "parseFile", false))
}

func TestNameScore_EmptyQueryOrNameHasNoBoost(t *testing.T) {
	// Given: an empty query string
	// When/Then: no match, no FTS credit
	assert.Equal(t, 0.0, nameScore("", "parseFile", false))
	assert.Equal(t, 0.0, nameScore("parseFile", "", false))
}

func TestCosine_IdenticalVectorsScoreOne(t *testing.T) {
	// Given: two identical unit vectors
	v := []float32{1, 0, 0}

	// When: I compute cosine similarity over 3 dims
	sim := cosine(v, v, 3)

	// Then: similarity is 1
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosine_ExcludesSentimentComponent(t *testing.T) {
	// Given: two vectors identical in their first 2 dims but differing
	// in the trailing sentiment slot
	a := []float32{1, 0, 0.9}
	b := []float32{1, 0, -0.9}

	// When: I compute cosine over dims=2 (excluding slot 2)
	sim := cosine(a, b, 2)

	// Then: the sentiment divergence doesn't affect the score
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosine_ShortVectorReturnsZero(t *testing.T) {
	// Given: a vector shorter than dims
	short := []float32{1, 0}

	// When: I request 3 dims of similarity
	sim := cosine(short, short, 3)

	// Then: it returns 0 rather than panicking
	assert.Equal(t, 0.0, sim)
}

func TestMatchesFilter_NilFilterAlwaysMatches(t *testing.T) {
	c := &model.Chunk{Language: model.LanguageGo}
	assert.True(t, matchesFilter(c, nil, nil))
}

func TestMatchesFilter_LanguageMismatchExcludes(t *testing.T) {
	// Given: a chunk in Python and a Go-only filter
	c := &model.Chunk{Language: model.LanguagePython}
	f := &Filter{Language: model.LanguageGo}

	// When/Then: it's excluded
	assert.False(t, matchesFilter(c, f, nil))
}

func TestMatchesFilter_ChunkIDAllowlist(t *testing.T) {
	// Given: a chunk id allowlist that doesn't include this chunk
	c := &model.Chunk{ID: "other"}
	f := &Filter{ChunkIDs: []string{"a", "b"}}

	// When/Then: it's excluded
	assert.False(t, matchesFilter(c, f, nil))
}

func TestSplitIdentifierTokens_CamelAndSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"parse", "file"}, splitIdentifierTokens("parseFile"))
	assert.Equal(t, []string{"parse", "file"}, splitIdentifierTokens("parse_file"))
}
