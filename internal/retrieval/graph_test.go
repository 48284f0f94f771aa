package retrieval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

func newTestStore(t *testing.T, dim int) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.Open(filepath.Join(dir, "index.db"), storage.OpenOptions{ModelName: "test", ModelDim: dim})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func vec(dim int, lead float32) []float32 {
	v := make([]float32, dim)
	v[0] = lead
	return v
}

func TestGraphQueries_CallersFindsReverseAdjacency(t *testing.T) {
	// Given: a store with one chunk calling "Callee"
	s := newTestStore(t, 4)
	caller := &model.Chunk{ID: "a.go:1:c1", Origin: "a.go", Name: "Caller", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 4, Content: "func Caller(){ Callee() }",
		ContentHash: "c1", Embedding: vec(4, 1), SourceMtime: time.Now()}
	edges := []model.CallEdge{{CallerChunkID: caller.ID, CalleeName: "Callee", CallLine: 2}}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{caller}, edges, nil, time.Now(), 4))

	// When: I ask who calls "Callee"
	sites, err := NewGraphQueries(s).Callers(context.Background(), "Callee", "")

	// Then: "Caller" is returned with the call line
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Caller", sites[0].Chunk.Name)
	assert.Equal(t, 2, sites[0].CallLine)
}

func TestGraphQueries_CalleesFindsForwardAdjacency(t *testing.T) {
	// Given: the same caller/callee fixture, plus a real "Callee" chunk
	s := newTestStore(t, 4)
	caller := &model.Chunk{ID: "a.go:1:c1", Origin: "a.go", Name: "Caller", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 4, Content: "func Caller(){ Callee() }",
		ContentHash: "c1", Embedding: vec(4, 1), SourceMtime: time.Now()}
	callee := &model.Chunk{ID: "a.go:10:c2", Origin: "a.go", Name: "Callee", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 10, LineEnd: 12, Content: "func Callee(){}",
		ContentHash: "c2", Embedding: vec(4, 1), SourceMtime: time.Now()}
	edges := []model.CallEdge{{CallerChunkID: caller.ID, CalleeName: "Callee", CallLine: 2}}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{caller, callee}, edges, nil, time.Now(), 4))

	// When: I ask what "Caller" calls
	callees, err := NewGraphQueries(s).Callees(context.Background(), "Caller", "")

	// Then: "Callee" is returned
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "Callee", callees[0].Name)
}

func TestGraphQueries_ImpactTraversesTransitiveCallers(t *testing.T) {
	// Given: top -> mid -> leaf call chain
	s := newTestStore(t, 4)
	top := &model.Chunk{ID: "a.go:1:top", Origin: "a.go", Name: "Top", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func Top(){ Mid() }", ContentHash: "top",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	mid := &model.Chunk{ID: "a.go:5:mid", Origin: "a.go", Name: "Mid", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 5, LineEnd: 6, Content: "func Mid(){ Leaf() }", ContentHash: "mid",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	edges := []model.CallEdge{
		{CallerChunkID: top.ID, CalleeName: "Mid", CallLine: 1},
		{CallerChunkID: mid.ID, CalleeName: "Leaf", CallLine: 5},
	}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{top, mid}, edges, nil, time.Now(), 4))

	// When: I ask for the impact of changing "Leaf" two hops out
	results, err := NewGraphQueries(s).Impact(context.Background(), "Leaf", 2, false)

	// Then: both Mid (depth 1) and Top (depth 2) are reached
	require.NoError(t, err)
	names := map[string]int{}
	for _, r := range results {
		names[r.Chunk.Name] = r.Depth
	}
	assert.Equal(t, 1, names["Mid"])
	assert.Equal(t, 2, names["Top"])
}

func TestGraphQueries_DeadCodeExcludesEntryPointsAndReachableCode(t *testing.T) {
	// Given: main() calls Used(); Unused() is never called
	s := newTestStore(t, 4)
	main := &model.Chunk{ID: "a.go:1:main", Origin: "a.go", Name: "main", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func main(){ Used() }", ContentHash: "main",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	used := &model.Chunk{ID: "a.go:5:used", Origin: "a.go", Name: "Used", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 5, LineEnd: 6, Content: "func Used(){}", ContentHash: "used",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	unused := &model.Chunk{ID: "a.go:10:unused", Origin: "a.go", Name: "Unused", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 10, LineEnd: 11, Content: "func Unused(){}", ContentHash: "unused",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	edges := []model.CallEdge{{CallerChunkID: main.ID, CalleeName: "Used", CallLine: 1}}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{main, used, unused}, edges, nil, time.Now(), 4))

	// When: I run dead-code detection
	dead, err := NewGraphQueries(s).DeadCode(context.Background())

	// Then: only "Unused" is reported — not "main" (entry point) or "Used" (reachable)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "Unused", dead[0].Name)
}

func TestGraphQueries_DriftReportsMissingPeersDistinctly(t *testing.T) {
	// Given: a current store with "Foo" and a reference store without it
	cur := newTestStore(t, 4)
	ref := newTestStore(t, 4)

	foo := &model.Chunk{ID: "a.go:1:foo", Origin: "a.go", Name: "Foo", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func Foo(){}", ContentHash: "foo",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	require.NoError(t, cur.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{foo}, nil, nil, time.Now(), 4))

	// When: I diff current against an empty reference
	results, err := NewGraphQueries(cur).Drift(context.Background(), ref, 0.9, 0)

	// Then: "Foo" is reported as missing from the reference, not as drift
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reference", results[0].MissingSide)
	assert.Equal(t, 0.0, results[0].Drift)
}

func TestIsTestChunk_UsesLanguageRegistryPatterns(t *testing.T) {
	// Given: a Go test file's chunk and a Python test function
	goTest := &model.Chunk{Origin: "foo_test.go", Name: "TestFoo", Language: model.LanguageGo}
	pyTest := &model.Chunk{Origin: "foo.py", Name: "test_foo", Language: model.LanguagePython}
	plain := &model.Chunk{Origin: "foo.go", Name: "Foo", Language: model.LanguageGo}

	// When/Then: classification matches each language's registered
	// TestFilePattern/TestNamePrefix, not a hardcoded rule
	assert.True(t, isTestChunk(goTest))
	assert.True(t, isTestChunk(pyTest))
	assert.False(t, isTestChunk(plain))
}

func TestIsEntryPoint_UsesLanguageRegistryEntryPoints(t *testing.T) {
	// Given: Go's conventional "main" and a non-entry-point function
	main := &model.Chunk{Name: "main", Language: model.LanguageGo}
	other := &model.Chunk{Name: "Compute", Language: model.LanguageGo}

	// When/Then: only names in the registry's EntryPoints list count
	assert.True(t, isEntryPoint(main))
	assert.False(t, isEntryPoint(other))
}

func TestGraphQueries_GatherAppliesDepthDecay(t *testing.T) {
	// Given: seed -> near -> far call chain
	s := newTestStore(t, 4)
	seed := &model.Chunk{ID: "a.go:1:seed", Origin: "a.go", Name: "Seed", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func Seed(){ Near() }", ContentHash: "seed",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	near := &model.Chunk{ID: "a.go:5:near", Origin: "a.go", Name: "Near", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 5, LineEnd: 6, Content: "func Near(){ Far() }", ContentHash: "near",
		Embedding: vec(4, 1), SourceMtime: time.Now()}
	edges := []model.CallEdge{
		{CallerChunkID: seed.ID, CalleeName: "Near", CallLine: 1},
		{CallerChunkID: near.ID, CalleeName: "Far", CallLine: 5},
	}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{seed, near}, edges, nil, time.Now(), 4))

	// When: I gather callees from "Seed"
	results, err := NewGraphQueries(s).Gather(context.Background(), []string{"Seed"}, "callees", 3, 10)

	// Then: "Near" (depth 1) scores higher than "Far" (depth 2)
	require.NoError(t, err)
	scores := map[string]float64{}
	for _, r := range results {
		scores[r.Chunk.Name] = r.Score
	}
	assert.Greater(t, scores["Near"], scores["Far"])
}
