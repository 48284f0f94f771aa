package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Index is the query-facing handle retrieval holds onto: it wraps a
// Backend behind a swappable pointer so a rebuild can replace the
// active backend atomically while old queries in flight keep serving
// against the prior one, per spec §4.5's atomic-swap contract.
type Index struct {
	mu     sync.RWMutex
	active Backend
	dir    string
	config Config
}

func Open(dir string, cfg Config) (*Index, error) {
	idx := &Index{dir: dir, config: cfg}

	backend, err := NewHNSWBackend(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(dir, manifestFilename)); err == nil {
		if err := backend.Load(dir); err != nil {
			return nil, fmt.Errorf("open vector index at %s: %w", dir, err)
		}
	}

	idx.active = backend
	return idx, nil
}

// EmbeddingSource streams (chunkID, vector) pairs in a stable order
// for a full rebuild; the storage package's chunk-iteration order
// (ascending chunk id) satisfies this.
type EmbeddingSource interface {
	Next(ctx context.Context) (chunkID string, vector []float32, ok bool, err error)
}

// BuildFromSource streams all embeddings from src into a freshly
// built backend under a temp directory, then atomically swaps it in
// for the active one: the rebuild never blocks concurrent Search
// calls against the backend being replaced.
func (idx *Index) BuildFromSource(ctx context.Context, src EmbeddingSource, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 256
	}

	fresh, err := NewHNSWBackend(idx.config)
	if err != nil {
		return err
	}

	var ids []string
	var vecs [][]float32
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		err := fresh.Add(ctx, ids, vecs)
		ids = ids[:0]
		vecs = vecs[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		id, vec, ok, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("stream embeddings: %w", err)
		}
		if !ok {
			break
		}
		ids = append(ids, id)
		vecs = append(vecs, vec)
		if len(ids) >= batchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("add batch: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("add final batch: %w", err)
	}

	tmpDir := idx.dir + ".rebuild.tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("clear rebuild temp dir: %w", err)
	}
	if err := fresh.Save(tmpDir); err != nil {
		return fmt.Errorf("save rebuilt index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := idx.active

	if err := os.RemoveAll(idx.dir); err != nil {
		return fmt.Errorf("remove old index dir: %w", err)
	}
	if err := os.Rename(tmpDir, idx.dir); err != nil {
		return fmt.Errorf("rename rebuild into place: %w", err)
	}

	idx.active = fresh
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	idx.mu.RLock()
	backend := idx.active
	idx.mu.RUnlock()
	return backend.Search(ctx, query, k)
}

func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.active.Contains(id)
}

func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.active.Count()
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.active == nil {
		return nil
	}
	return idx.active.Close()
}
