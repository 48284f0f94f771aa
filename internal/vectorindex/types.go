// Package vectorindex provides a persistent approximate-nearest-neighbor
// index over chunk embeddings, keyed by stable chunk identity, per
// SPEC_FULL.md §4.5.
package vectorindex

import (
	"context"
	"fmt"
)

// Result is a single ANN search hit.
type Result struct {
	ChunkID  string
	Distance float32
	Score    float32 // normalized similarity, 0-1
}

// Config configures a Backend's graph parameters and the embedding
// width it was built for.
type Config struct {
	Dimensions     int
	Metric         string // "cos" or "l2"
	M              int
	EfConstruction int
	EfSearch       int
}

func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// Backend is the interface both ANN implementations satisfy. Only
// HNSWBackend (graph-based CPU ANN) is implemented concretely: no GPU
// ANN library appears anywhere in the retrieved example pack, so the
// GPU path described in spec §4.5 stays an unimplemented extension
// point rather than a fabricated dependency.
type Backend interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int

	// Save persists the backend under dir, writing a checksum manifest
	// covering every file it writes.
	Save(dir string) error
	// Load opens a backend from dir, verifying the checksum manifest
	// before importing any file; a mismatch is an error, not silently
	// ignored corruption.
	Load(dir string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector's width does not match the
// backend's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector index dimension mismatch: expected %d, got %d (reindex required)", e.Expected, e.Got)
}

// ErrChecksumMismatch indicates an on-disk manifest entry does not
// match the file's current contents: the index must be rebuilt, not
// loaded.
type ErrChecksumMismatch struct {
	File string
}

func (e ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("vector index checksum mismatch for %s (reindex required)", e.File)
}
