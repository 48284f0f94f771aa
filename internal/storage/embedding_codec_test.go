package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingToBytes_RoundTrips(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 3.125}

	buf, err := embeddingToBytes(vec, 4)
	require.NoError(t, err)
	assert.Len(t, buf, 16)

	got := bytesToEmbedding(buf)
	assert.Equal(t, vec, got)
}

func TestEmbeddingToBytes_FailsOnDimensionMismatch(t *testing.T) {
	// Given: a 3-dim vector but an index expecting 4 dims
	vec := []float32{1, 2, 3}

	// When: encoding
	_, err := embeddingToBytes(vec, 4)

	// Then: it errors rather than silently truncating or padding
	require.Error(t, err)
}

func TestBytesToEmbedding_RejectsUnalignedBuffer(t *testing.T) {
	got := bytesToEmbedding([]byte{1, 2, 3})
	assert.Nil(t, got)
}
