package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorMagnitude(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

func TestStaticEmbedder_Embed_ReturnsDPlusOneDimensions(t *testing.T) {
	// Given: static embedder with 256 model dimensions
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	// When: I embed some text
	embedding, err := embedder.Embed(context.Background(), "func main() {}")

	// Then: the vector carries one extra sentiment slot beyond the model width
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions+1)
}

func TestStaticEmbedder_Embed_LastComponentIsZeroSentiment(t *testing.T) {
	// Given: static embedder
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	// When: I embed code text
	embedding, err := embedder.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)

	// Then: the sentiment component is 0, since sentiment belongs to notes, not code
	assert.Equal(t, float32(0), embedding[len(embedding)-1])
}

func TestStaticEmbedder_Embed_FirstDComponentsAreNormalized(t *testing.T) {
	// Given: static embedder
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	// When: I embed text
	embedding, err := embedder.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)

	// Then: the model portion (excluding the appended sentiment slot) is unit length
	magnitude := vectorMagnitude(embedding[:len(embedding)-1])
	assert.InDelta(t, 1.0, magnitude, 0.001)
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	// Given: static embedder
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "func add(a, b int) int { return a + b }"

	// When: I embed the same text twice
	emb1, err1 := embedder.Embed(context.Background(), text)
	emb2, err2 := embedder.Embed(context.Background(), text)

	// Then: identical vectors are returned
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2)
}

func TestStaticEmbedder_Embed_EmptyTextReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions+1)
	for _, v := range embedding {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_Close_RejectsFurtherEmbeds(t *testing.T) {
	embedder := NewStaticEmbedder()
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "func main() {}")
	assert.Error(t, err)
	assert.False(t, embedder.Available(context.Background()))
}

func TestStaticEmbedder_TokenCount_MatchesTokenizer(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "func parseChunkID(origin string) {}"
	n := embedder.TokenCount(text)
	assert.Greater(t, n, 0)
	assert.Equal(t, len(tokenize(text)), n)
}
