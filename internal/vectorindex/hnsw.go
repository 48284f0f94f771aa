package vectorindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

const (
	graphFilename = "graph.hnsw"
	metaFilename  = "graph.meta"
)

// HNSWBackend is the graph-based CPU ANN backend: a pure-Go
// hierarchical graph over chunk embeddings, persisted as a graph file
// plus an id-map metadata file, both covered by a checksum manifest.
type HNSWBackend struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

var _ Backend = (*HNSWBackend)(nil)

// hnswMetadata is the gob-encoded id-map persisted alongside the graph.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

func NewHNSWBackend(cfg Config) (*HNSWBackend, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "cos":
		graph.Distance = hnsw.CosineDistance
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWBackend{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts vectors with their chunk IDs, lazily replacing any
// existing entry under the same ID: the prior graph node is orphaned
// rather than deleted, since coder/hnsw corrupts the graph when the
// last node is removed.
func (b *HNSWBackend) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, v := range vectors {
		if len(v) != b.config.Dimensions {
			return ErrDimensionMismatch{Expected: b.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := b.idMap[id]; exists {
			delete(b.keyMap, existingKey)
			delete(b.idMap, id)
		}

		key := b.nextKey
		b.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if b.config.Metric == "cos" {
			normalizeInPlace(vec)
		}

		b.graph.Add(hnsw.MakeNode(key, vec))
		b.idMap[id] = key
		b.keyMap[key] = id
	}

	return nil
}

func (b *HNSWBackend) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(query) != b.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: b.config.Dimensions, Got: len(query)}
	}
	if b.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if b.config.Metric == "cos" {
		normalizeInPlace(q)
	}

	nodes := b.graph.Search(q, k)
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, exists := b.keyMap[node.Key]
		if !exists {
			continue // orphaned (lazily deleted) node
		}
		distance := b.graph.Distance(q, node.Value)
		results = append(results, Result{
			ChunkID:  id,
			Distance: distance,
			Score:    distanceToScore(distance, b.config.Metric),
		})
	}
	return results, nil
}

func (b *HNSWBackend) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("vector index is closed")
	}
	for _, id := range ids {
		if key, exists := b.idMap[id]; exists {
			delete(b.keyMap, key)
			delete(b.idMap, id)
		}
	}
	return nil
}

func (b *HNSWBackend) AllIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	ids := make([]string, 0, len(b.idMap))
	for id := range b.idMap {
		ids = append(ids, id)
	}
	return ids
}

func (b *HNSWBackend) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	_, exists := b.idMap[id]
	return exists
}

func (b *HNSWBackend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	return len(b.idMap)
}

// Save persists the graph and id-map to temp files under dir, then
// renames each into place and writes the checksum manifest last, so a
// crash mid-save never leaves a manifest pointing at partial files.
func (b *HNSWBackend) Save(dir string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("vector index is closed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	graphPath := filepath.Join(dir, graphFilename)
	if err := saveGraph(b.graph, graphPath); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	metaPath := filepath.Join(dir, metaFilename)
	if err := saveMetadata(hnswMetadata{IDMap: b.idMap, NextKey: b.nextKey, Config: b.config}, metaPath); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	return writeManifest(dir, []string{graphFilename, metaFilename})
}

// Load verifies the checksum manifest before importing any file: a
// mismatch means the index directory is inconsistent and must not be
// loaded, per spec §4.5's "mismatch → error (don't load)".
func (b *HNSWBackend) Load(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := verifyManifest(dir); err != nil {
		return fmt.Errorf("verify vector index manifest: %w", err)
	}

	var meta hnswMetadata
	if err := loadMetadata(&meta, filepath.Join(dir, metaFilename)); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	graph := hnsw.NewGraph[uint64]()
	switch meta.Config.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = meta.Config.M
	graph.EfSearch = meta.Config.EfSearch
	graph.Ml = 0.25

	f, err := os.Open(filepath.Join(dir, graphFilename))
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer f.Close()

	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	b.graph = graph
	b.config = meta.Config
	b.idMap = meta.IDMap
	b.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range b.idMap {
		b.keyMap[key] = id
	}
	b.closed = false
	return nil
}

func (b *HNSWBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.graph = nil
	return nil
}

func saveGraph(graph *hnsw.Graph[uint64], path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func saveMetadata(meta hnswMetadata, path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func loadMetadata(meta *hnswMetadata, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(meta)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
