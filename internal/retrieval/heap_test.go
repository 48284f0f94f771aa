package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

func TestBoundedResultHeap_KeepsOnlyTopNByScore(t *testing.T) {
	// Given: a heap bounded to 2 entries
	h := newBoundedResultHeap(2)

	// When: I offer three results of increasing score
	h.Offer(Result{Chunk: &model.Chunk{ID: "c"}, FinalScore: 0.1})
	h.Offer(Result{Chunk: &model.Chunk{ID: "b"}, FinalScore: 0.5})
	h.Offer(Result{Chunk: &model.Chunk{ID: "a"}, FinalScore: 0.9})

	// Then: only the top 2 survive, best first
	sorted := h.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].Chunk.ID)
	assert.Equal(t, "b", sorted[1].Chunk.ID)
}

func TestBoundedResultHeap_TiesBreakByAscendingChunkID(t *testing.T) {
	// Given: a heap with two equally-scored results
	h := newBoundedResultHeap(5)
	h.Offer(Result{Chunk: &model.Chunk{ID: "zzz"}, FinalScore: 0.5})
	h.Offer(Result{Chunk: &model.Chunk{ID: "aaa"}, FinalScore: 0.5})

	// When: I read the sorted order
	sorted := h.Sorted()

	// Then: the lexicographically smaller id comes first
	require.Len(t, sorted, 2)
	assert.Equal(t, "aaa", sorted[0].Chunk.ID)
}

func TestBoundedResultHeap_SkipsNaNScores(t *testing.T) {
	// Given: a heap offered one NaN-scored and one valid result
	h := newBoundedResultHeap(5)
	h.Offer(Result{Chunk: &model.Chunk{ID: "nan"}, FinalScore: math.NaN()})
	h.Offer(Result{Chunk: &model.Chunk{ID: "ok"}, FinalScore: 0.5})

	// When/Then: only the valid result survives
	sorted := h.Sorted()
	require.Len(t, sorted, 1)
	assert.Equal(t, "ok", sorted[0].Chunk.ID)
}

func TestScoredChunkHeap_KeepsTopKByBoostedScore(t *testing.T) {
	// Given: a bounded candidate heap of size 1
	h := newScoredChunkHeap(1)

	// When: I offer a low-scoring then a high-scoring candidate
	h.offer(semanticCandidate{Chunk: &model.Chunk{ID: "low"}, Boosted: 0.1})
	h.offer(semanticCandidate{Chunk: &model.Chunk{ID: "high"}, Boosted: 0.9})

	// Then: only the higher-scoring candidate remains
	sorted := h.sorted()
	require.Len(t, sorted, 1)
	assert.Equal(t, "high", sorted[0].Chunk.ID)
}
