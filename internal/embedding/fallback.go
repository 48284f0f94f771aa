package embedding

import (
	"context"
	"log/slog"
)

// FallbackEmbedder routes batches to a GPU embedder and falls back to
// a CPU embedder per-batch on failure, per spec's indexing data flow:
// "GPU failures re-routed to CPU embedder". A batch is only ever
// recorded as lost by the caller if the CPU fallback also fails.
//
// Vectors produced by GPU and CPU embedders have different
// dimensions; FallbackEmbedder reports the GPU dimension as its
// Dimensions() since that is the model actually selected for this
// index, and callers that receive a CPU-fallback vector must re-pad
// or re-dimension accordingly at the store layer (a dimension
// mismatch at Store open is the fatal error spec §4.4 describes).
type FallbackEmbedder struct {
	gpu Embedder
	cpu Embedder
	log *slog.Logger
}

var _ Embedder = (*FallbackEmbedder)(nil)

func NewFallbackEmbedder(gpu, cpu Embedder, log *slog.Logger) *FallbackEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackEmbedder{gpu: gpu, cpu: cpu, log: log}
}

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.gpu.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	f.log.Warn("gpu_embed_failed_falling_back_to_cpu", slog.String("error", err.Error()))
	return f.cpu.Embed(ctx, text)
}

// EmbedBatch tries the whole batch on GPU first; on any error it
// re-embeds the entire batch on CPU rather than partially retrying,
// matching spec §7's per-batch (not per-chunk) fallback granularity.
func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.gpu.EmbedBatch(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	f.log.Warn("gpu_batch_failed_falling_back_to_cpu",
		slog.Int("batch_size", len(texts)),
		slog.String("error", err.Error()))
	return f.cpu.EmbedBatch(ctx, texts)
}

func (f *FallbackEmbedder) Dimensions() int { return f.gpu.Dimensions() }

func (f *FallbackEmbedder) ModelName() string { return f.gpu.ModelName() }

func (f *FallbackEmbedder) Available(ctx context.Context) bool {
	return f.gpu.Available(ctx) || f.cpu.Available(ctx)
}

func (f *FallbackEmbedder) Close() error {
	gpuErr := f.gpu.Close()
	cpuErr := f.cpu.Close()
	if gpuErr != nil {
		return gpuErr
	}
	return cpuErr
}

func (f *FallbackEmbedder) SetBatchIndex(idx int) {
	f.gpu.SetBatchIndex(idx)
	f.cpu.SetBatchIndex(idx)
}

func (f *FallbackEmbedder) SetFinalBatch(isFinal bool) {
	f.gpu.SetFinalBatch(isFinal)
	f.cpu.SetFinalBatch(isFinal)
}

func (f *FallbackEmbedder) TokenCount(text string) int { return f.gpu.TokenCount(text) }
