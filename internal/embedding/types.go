package embedding

import (
	"context"
	"math"
	"time"
)

// Embedder produces vector embeddings for chunk text, plus the token
// accounting the parser's windowing needs (SPEC_FULL.md §4.2/§4.3).
// Every concrete embedder yields vectors of Dimensions()+1 floats: the
// final component is the sentiment slot, which is always 0 for chunk
// text (see codeSentimentComponent).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error

	// SetBatchIndex/SetFinalBatch let a coordinator warn a remote
	// embedder about thermal progression across a long indexing run.
	SetBatchIndex(idx int)
	SetFinalBatch(isFinal bool)

	// TokenCount estimates the subword token count for text using the
	// same accounting the embedder applies at embed time, satisfying
	// parsing.TokenCounter so chunk windowing matches embed-time limits.
	TokenCount(text string) int
}

// Batch-size bounds shared by all embedders.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32
)

// Thermal-timeout constants for HTTP-backed embedders: a remote model
// server on shared hardware slows down over a long indexing run, so
// callers scale request timeouts with batch progress rather than using
// a single fixed deadline.
const (
	DefaultWarmTimeout        = 120 * time.Second
	DefaultColdTimeout        = 180 * time.Second
	ModelUnloadThreshold      = 5 * time.Minute
	DefaultTimeoutProgression = 1.5
	MaxTimeoutProgression     = 3.0
)

// Dimension presets. DefaultDimensions is the GPU embedder's native
// size; StaticDimensions is the CPU fallback's hash-space size.
const (
	DefaultDimensions = 768
	StaticDimensions  = 256
)

// QueryTaskPrefix is prepended to query text (not to indexed chunk
// text) for embedders whose model distinguishes a retrieval query from
// a passage, per spec §4.3's query/passage asymmetry note.
const QueryTaskPrefix = "Represent this code search query: "

// normalizeVector scales v to unit L2 length in place semantics
// (returns a new slice), so cosine similarity reduces to a dot
// product at search time.
func normalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// codeSentimentComponent is the fixed value of the (D+1)-th embedding
// component for source chunks: sentiment is a human-authored property
// of notes, never inferred from code text, so every chunk embedding
// carries 0 in this slot per spec §4.3. Only a note's own sentiment
// value (loaded separately at query time) feeds the note-boost.
const codeSentimentComponent = float32(0)

// appendSentimentComponent returns a new vector with the fixed
// sentiment component appended as the final dimension, producing the
// D+1-dimensional vector persisted and indexed for chunks.
func appendSentimentComponent(vec []float32) []float32 {
	out := make([]float32, len(vec)+1)
	copy(out, vec)
	out[len(vec)] = codeSentimentComponent
	return out
}
