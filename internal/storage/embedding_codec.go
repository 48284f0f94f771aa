package storage

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
)

// embeddingToBytes serializes a []float32 to a fixed-width little-
// endian byte blob. It fails on a dimension that doesn't match
// expectedDim rather than silently truncating, per spec §4.4's
// "embedding_to_bytes fails on wrong dimension (does not truncate)".
func embeddingToBytes(vec []float32, expectedDim int) ([]byte, error) {
	if expectedDim > 0 && len(vec) != expectedDim {
		return nil, cqserrors.ModelMismatch("embedding_to_bytes", "embedding dimension does not match index", true).
			WithDetail("expected_dim", strconv.Itoa(expectedDim)).
			WithDetail("got_dim", strconv.Itoa(len(vec)))
	}

	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf, nil
}

func bytesToEmbedding(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
