// Package retrieval implements hybrid code search: lexical FTS,
// semantic ANN, name matching, and note-boosting fused by Reciprocal
// Rank Fusion, plus structural graph queries over call/type edges,
// per SPEC_FULL.md §4.7-4.9.
package retrieval

import "github.com/jamie8johnson/cqs-sub000/internal/model"

// DefaultRRFConstant is the standard smoothing parameter (k=60),
// empirically validated across hybrid search systems.
const DefaultRRFConstant = 60

// DefaultNameWeight scales the name-match boost applied to semantic
// scores before fusion.
const DefaultNameWeight = 0.2

// DefaultNoteBoostFactor scales a matching note's sentiment into a
// multiplicative score adjustment.
const DefaultNoteBoostFactor = 0.15

// candidateAlphaFiltered and candidateAlphaUnfiltered set how many
// candidates ANN/FTS fetch relative to limit: filtered searches cast
// a wider net since post-filtering shrinks the survivor set.
const (
	candidateAlphaFiltered   = 10
	candidateAlphaUnfiltered = 3
)

// Filter narrows which chunks a search considers.
type Filter struct {
	Language  model.Language
	ChunkType model.ChunkType
	PathGlob  string
	ChunkIDs  []string // allowlist; empty means unrestricted
}

func (f *Filter) isSet() bool {
	return f != nil && (f.Language != "" || f.ChunkType != "" || f.PathGlob != "" || len(f.ChunkIDs) > 0)
}

// Query bundles a search request's inputs.
type Query struct {
	Text      string
	Embedding []float32 // pre-embedded query vector, D+1 dims
	Filter    *Filter
	Limit     int
	Threshold float64 // minimum final score; 0 disables
}

// Result is one ranked search hit, annotated with every intermediate
// score that fed into its final rank, for explainability.
type Result struct {
	Chunk       *model.Chunk
	Semantic    float64
	NameScore   float64
	Boosted     float64
	RRFScore    float64
	NoteBoosted float64
	FinalScore  float64
}
