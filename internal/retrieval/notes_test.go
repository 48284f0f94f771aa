package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

func TestApplyNoteBoost_NoMatchingNoteLeavesScoreUnchanged(t *testing.T) {
	// Given: a chunk with no mentioning note
	c := &model.Chunk{Name: "parseFile", Origin: "internal/parsing/tree.go"}
	notes := []storage.NoteSummary{{ID: "n1", Sentiment: 1, Mentions: []string{"unrelated"}}}

	// When: I apply note boost
	boosted := applyNoteBoost(0.8, c, notes, DefaultNoteBoostFactor)

	// Then: the score is untouched
	assert.Equal(t, 0.8, boosted)
}

func TestApplyNoteBoost_RespectsCapBound(t *testing.T) {
	// Given: a chunk mentioned by a maximally-positive note
	c := &model.Chunk{Name: "parseFile", Origin: "internal/parsing/tree.go"}
	notes := []storage.NoteSummary{{ID: "n1", Sentiment: 1, Mentions: []string{"parseFile"}}}
	base := 0.8

	// When: I apply the boost at the configured cap
	boosted := applyNoteBoost(base, c, notes, DefaultNoteBoostFactor)

	// Then: the adjustment never exceeds factor*base, per spec §8
	assert.LessOrEqual(t, boosted-base, DefaultNoteBoostFactor*base+1e-9)
	assert.Greater(t, boosted, base)
}

func TestApplyNoteBoost_NegativeSentimentLowersScore(t *testing.T) {
	c := &model.Chunk{Name: "parseFile", Origin: "internal/parsing/tree.go"}
	notes := []storage.NoteSummary{{ID: "n1", Sentiment: -1, Mentions: []string{"parseFile"}}}

	boosted := applyNoteBoost(0.8, c, notes, DefaultNoteBoostFactor)

	assert.Less(t, boosted, 0.8)
}

func TestMatchingSentiment_PicksMaxAbsoluteSentimentOnTie(t *testing.T) {
	// Given: two notes mentioning the same chunk with differing magnitude
	c := &model.Chunk{Name: "parseFile", Origin: "internal/parsing/tree.go"}
	notes := []storage.NoteSummary{
		{ID: "weak", Sentiment: 0.25, Mentions: []string{"parseFile"}},
		{ID: "strong", Sentiment: -0.9, Mentions: []string{"parseFile"}},
	}

	// When: I resolve the matching sentiment
	sentiment, found := matchingSentiment(c, notes)

	// Then: the larger-magnitude note wins regardless of sign
	assert.True(t, found)
	assert.Equal(t, -0.9, sentiment)
}

func TestNotementMatches_FullSegmentButNotSubstring(t *testing.T) {
	// Given: a mention that is a full filename segment (sans extension)
	// When/Then: it matches "foo" against ".../foo.rs" ...
	assert.True(t, matchesFullSegment("foo", "src/foo.rs"))
	// ...but not a partial substring of a longer segment
	assert.False(t, matchesFullSegment("foo", "src/foobar.rs"))
}
