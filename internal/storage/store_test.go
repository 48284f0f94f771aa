package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

func TestOpen_FreshStoreWritesMetadata(t *testing.T) {
	// Given: a fresh index path with no prior metadata
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	// When: I open it with a model identity
	s, err := Open(path, OpenOptions{ModelName: "static-v1", ModelDim: 257})
	require.NoError(t, err)
	defer s.Close()

	// Then: Metadata reflects the identity I opened with
	meta, err := s.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, meta.SchemaVersion)
	assert.Equal(t, "static-v1", meta.ModelName)
	assert.Equal(t, 257, meta.ModelDim)
}

func TestOpen_ModelDimMismatchIsFatal(t *testing.T) {
	// Given: a store previously opened with a 257-dim model
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s1, err := Open(path, OpenOptions{ModelName: "static-v1", ModelDim: 257})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// When: I reopen it claiming a different dimension
	_, err = Open(path, OpenOptions{ModelName: "static-v1", ModelDim: 769})

	// Then: a model mismatch error is returned
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reindex required")
}

func TestOpen_ModelNameMismatchIsFatal(t *testing.T) {
	// Given: a store previously opened under one model name
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s1, err := Open(path, OpenOptions{ModelName: "static-v1", ModelDim: 257})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// When: I reopen it under a different model name
	_, err = Open(path, OpenOptions{ModelName: "gpu-v2", ModelDim: 257})

	// Then: a model mismatch error is returned
	require.Error(t, err)
}

func TestOpen_AllowEmptySkipsIdentityWrite(t *testing.T) {
	// Given: a fresh path opened with AllowEmpty
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s, err := Open(path, OpenOptions{AllowEmpty: true})
	require.NoError(t, err)
	defer s.Close()

	// Then: no metadata row exists yet
	_, err = s.Metadata(context.Background())
	require.Error(t, err)
}

func TestStore_Close_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4, AllowEmpty: true})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestUpsertChunksAndEdges_AtomicPerOrigin(t *testing.T) {
	// Given: an open store
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "static-v1", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	chunk := &model.Chunk{
		ID: "a.go:1:abcd", Origin: "a.go", Name: "Foo", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 3, Content: "func Foo() {}",
		ContentHash: "abcd", Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now(),
	}
	edges := []model.CallEdge{{CallerChunkID: chunk.ID, CalleeName: "Bar", CallLine: 2}}

	// When: I upsert it
	err = s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{chunk}, edges, nil, time.Now(), 4)
	require.NoError(t, err)

	// Then: it is fetchable by id, and its call edge is visible
	fetched, err := s.FetchByIDs(context.Background(), []string{chunk.ID})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "Foo", fetched[0].Name)

	callers, err := s.GetCallersFull(context.Background(), "Bar")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, chunk.ID, callers[0].ID)
}

func TestUpsertChunksAndEdges_ReplacesPriorOriginRows(t *testing.T) {
	// Given: a store with one chunk indexed for a.go
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "static-v1", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	old := &model.Chunk{ID: "a.go:1:old1", Origin: "a.go", Name: "Old", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func Old(){}", ContentHash: "old1",
		Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now()}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{old}, nil, nil, time.Now(), 4))

	// When: I upsert new chunks for the same origin
	fresh := &model.Chunk{ID: "a.go:5:new1", Origin: "a.go", Name: "New", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 5, LineEnd: 6, Content: "func New(){}", ContentHash: "new1",
		Embedding: []float32{0, 1, 0, 0}, SourceMtime: time.Now()}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{fresh}, nil, nil, time.Now(), 4))

	// Then: the old chunk is gone and only the new one remains
	old_, err := s.FetchByIDs(context.Background(), []string{old.ID})
	require.NoError(t, err)
	assert.Empty(t, old_)

	new_, err := s.FetchByIDs(context.Background(), []string{fresh.ID})
	require.NoError(t, err)
	require.Len(t, new_, 1)
}

func TestUpsertChunksAndEdges_DimensionMismatchAbortsTransaction(t *testing.T) {
	// Given: an open store expecting 4-dim embeddings
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "static-v1", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	bad := &model.Chunk{ID: "a.go:1:bad1", Origin: "a.go", Name: "Bad", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func Bad(){}", ContentHash: "bad1",
		Embedding: []float32{1, 0}, SourceMtime: time.Now()}

	// When: I upsert a chunk whose embedding has the wrong dimension
	err = s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{bad}, nil, nil, time.Now(), 4)

	// Then: the upsert fails and nothing was written
	require.Error(t, err)
	fetched, err := s.FetchByIDs(context.Background(), []string{bad.ID})
	require.NoError(t, err)
	assert.Empty(t, fetched)
}

func TestNeedsReindex_NewFileAlwaysNeedsIndexing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	needs, err := s.NeedsReindex(context.Background(), "never-seen.go", time.Now())
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestNeedsReindex_UnchangedFileDoesNotNeedReindex(t *testing.T) {
	// Given: a chunk stored with a known source mtime
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	mtime := time.Now().Add(-time.Hour)
	chunk := &model.Chunk{ID: "a.go:1:x", Origin: "a.go", Name: "X", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func X(){}", ContentHash: "x",
		Embedding: []float32{1, 0, 0, 0}, SourceMtime: mtime}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{chunk}, nil, nil, mtime, 4))

	// When: checking with the same mtime
	needs, err := s.NeedsReindex(context.Background(), "a.go", mtime)
	require.NoError(t, err)

	// Then: no reindex is needed
	assert.False(t, needs)
}

func TestGetEmbeddingsByHashes_ReturnsOnlyStoredHashes(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	chunk := &model.Chunk{ID: "a.go:1:h1", Origin: "a.go", Name: "X", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func X(){}", ContentHash: "h1",
		Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now()}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{chunk}, nil, nil, time.Now(), 4))

	out, err := s.GetEmbeddingsByHashes(context.Background(), []string{"h1", "missing"})
	require.NoError(t, err)
	assert.Contains(t, out, "h1")
	assert.NotContains(t, out, "missing")
	assert.Equal(t, []float32{1, 0, 0, 0}, out["h1"])
}

func TestSearchFTS_MatchesNormalizedIdentifierTokens(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	chunk := &model.Chunk{ID: "a.go:1:h1", Origin: "a.go", Name: "ParseConfigFile", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 2, Content: "func ParseConfigFile() error { return nil }",
		ContentHash: "h1", Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now()}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{chunk}, nil, nil, time.Now(), 4))

	results, err := s.SearchFTS(context.Background(), "parse config", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunk.ID, results[0].ChunkID)
}

func TestSearchByName_PrefersExactOverPrefixOverContains(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	chunks := []*model.Chunk{
		{ID: "a.go:1:c1", Origin: "a.go", Name: "RunAllTests", ChunkType: model.ChunkTypeFunction, Language: model.LanguageGo,
			LineStart: 1, LineEnd: 2, Content: "func RunAllTests(){}", ContentHash: "c1", Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now()},
		{ID: "a.go:5:c2", Origin: "a.go", Name: "Run", ChunkType: model.ChunkTypeFunction, Language: model.LanguageGo,
			LineStart: 5, LineEnd: 6, Content: "func Run(){}", ContentHash: "c2", Embedding: []float32{0, 1, 0, 0}, SourceMtime: time.Now()},
	}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", chunks, nil, nil, time.Now(), 4))

	results, err := s.SearchByName(context.Background(), "Run", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Run", results[0].Name)
}

func TestGetCallGraph_BuildsForwardAndReverseAdjacency(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	chunk := &model.Chunk{ID: "a.go:1:c1", Origin: "a.go", Name: "Caller", ChunkType: model.ChunkTypeFunction,
		Language: model.LanguageGo, LineStart: 1, LineEnd: 4, Content: "func Caller(){ Callee() }", ContentHash: "c1",
		Embedding: []float32{1, 0, 0, 0}, SourceMtime: time.Now()}
	edges := []model.CallEdge{{CallerChunkID: chunk.ID, CalleeName: "Callee", CallLine: 2}}
	require.NoError(t, s.UpsertChunksAndEdges(context.Background(), "a.go", []*model.Chunk{chunk}, edges, nil, time.Now(), 4))

	g, err := s.GetCallGraph(context.Background())
	require.NoError(t, err)
	assert.Len(t, g.Forward[chunk.ID], 1)
	assert.Equal(t, []string{chunk.ID}, g.Reverse["Callee"])
}

func TestReplaceNotes_OverwritesWholeTable(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), OpenOptions{ModelName: "m", ModelDim: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.ReplaceNotes(context.Background(), []NoteSummary{
		{ID: "n1", Text: "careful here", Sentiment: -0.5, Mentions: []string{"Foo"}},
	}))

	notes, err := s.ListNotesSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
	assert.Equal(t, []string{"Foo"}, notes[0].Mentions)

	// When: I replace with a different set
	require.NoError(t, s.ReplaceNotes(context.Background(), []NoteSummary{
		{ID: "n2", Text: "solid pattern", Sentiment: 0.5, Mentions: nil},
	}))

	// Then: only the new set is present
	notes, err = s.ListNotesSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n2", notes[0].ID)
}
