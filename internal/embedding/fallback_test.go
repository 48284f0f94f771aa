package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	dims      int
	name      string
	failBatch bool
	failOnce  bool
	calls     int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failBatch {
		return nil, errors.New("stub embed failure")
	}
	return make([]float32, s.dims), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failBatch {
		return nil, errors.New("stub batch failure")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int                   { return s.dims }
func (s *stubEmbedder) ModelName() string                 { return s.name }
func (s *stubEmbedder) Available(_ context.Context) bool  { return !s.failBatch }
func (s *stubEmbedder) Close() error                      { return nil }
func (s *stubEmbedder) SetBatchIndex(_ int)                {}
func (s *stubEmbedder) SetFinalBatch(_ bool)               {}
func (s *stubEmbedder) TokenCount(text string) int        { return len(text) }

func TestFallbackEmbedder_EmbedBatch_UsesGPUWhenHealthy(t *testing.T) {
	gpu := &stubEmbedder{dims: 768, name: "gpu"}
	cpu := &stubEmbedder{dims: 256, name: "static"}
	fb := NewFallbackEmbedder(gpu, cpu, nil)

	out, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, out[0], 768)
	assert.Equal(t, 1, gpu.calls)
	assert.Equal(t, 0, cpu.calls)
}

func TestFallbackEmbedder_EmbedBatch_FallsBackToCPUOnGPUFailure(t *testing.T) {
	gpu := &stubEmbedder{dims: 768, name: "gpu", failBatch: true}
	cpu := &stubEmbedder{dims: 256, name: "static"}
	fb := NewFallbackEmbedder(gpu, cpu, nil)

	out, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, out[0], 256)
	assert.Equal(t, 1, cpu.calls)
}

func TestFallbackEmbedder_EmbedBatch_ErrorsWhenBothFail(t *testing.T) {
	gpu := &stubEmbedder{dims: 768, name: "gpu", failBatch: true}
	cpu := &stubEmbedder{dims: 256, name: "static", failBatch: true}
	fb := NewFallbackEmbedder(gpu, cpu, nil)

	_, err := fb.EmbedBatch(context.Background(), []string{"a"})
	assert.Error(t, err)
}
