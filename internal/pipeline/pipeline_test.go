package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/embedding"
	"github.com/jamie8johnson/cqs-sub000/internal/enumerate"
	"github.com/jamie8johnson/cqs-sub000/internal/parsing"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

func newTestPipeline(t *testing.T, rootDir string) (*Pipeline, *storage.Store) {
	t.Helper()
	embedder := embedding.NewStaticEmbedder()
	dim := embedder.Dimensions() + 1
	s, err := storage.Open(filepath.Join(t.TempDir(), "index.db"), storage.OpenOptions{ModelName: "static-v1", ModelDim: dim})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	enumer, err := enumerate.New()
	require.NoError(t, err)

	return New(s, embedder, enumer, parsing.NewParser()), s
}

func TestPipeline_RunIndexesDiscoveredGoFile(t *testing.T) {
	// Given: a one-file Go project
	root := t.TempDir()
	src := "package sample\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0o644))

	p, store := newTestPipeline(t, root)

	// When: I run the pipeline over the project
	snap, err := p.Run(context.Background(), Config{RootDir: root})

	// Then: the file was enumerated, parsed, embedded, and written
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.FilesEnumerated)
	assert.Equal(t, int64(1), snap.FilesParsed)
	assert.Equal(t, int64(1), snap.FilesWritten)
	assert.Equal(t, int64(0), snap.ParseErrors)

	chunks, err := store.SearchByName(context.Background(), "Greet", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Embedding)
}

func TestPipeline_RunSkipsUnchangedFileOnSecondPass(t *testing.T) {
	// Given: a project indexed once already
	root := t.TempDir()
	src := "package sample\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0o644))

	p, _ := newTestPipeline(t, root)
	_, err := p.Run(context.Background(), Config{RootDir: root})
	require.NoError(t, err)

	// When: I run again with no content change
	snap, err := p.Run(context.Background(), Config{RootDir: root})

	// Then: NeedsReindex short-circuits the file before it's re-parsed
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.FilesParsed)
	assert.Equal(t, int64(0), snap.FilesWritten)
}

func TestPipeline_RunSkipsContentAlreadyCachedByHash(t *testing.T) {
	// Given: a.go already indexed, and a second file with byte-identical
	// chunk content under a different name
	root := t.TempDir()
	body := "package sample\n\nfunc A() int {\n\treturn 1\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(body), 0o644))

	p, _ := newTestPipeline(t, root)
	_, err := p.Run(context.Background(), Config{RootDir: root})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte(body), 0o644))

	// When: I index again, picking up only the new file
	snap, err := p.Run(context.Background(), Config{RootDir: root})

	// Then: b.go's chunk is pulled from the hash cache rather than re-embedded
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.FilesWritten)
	assert.Greater(t, snap.ChunksCached, int64(0))
}
