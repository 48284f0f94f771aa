package parsing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

const goSample = `package sample

// Add sums two integers.
func Add(a int, b int) int {
	return helper(a) + b
}

func helper(x int) int {
	return x * 2
}
`

func TestParseFileRelationships_ExtractsChunksAndCallEdges(t *testing.T) {
	p := NewParser()
	defer p.Close()

	result, err := p.ParseFileRelationships(context.Background(), "pkg/sample.go", []byte(goSample), model.LanguageGo, time.Now(), nil, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	var add *model.Chunk
	for _, c := range result.Chunks {
		if c.Name == "Add" {
			add = c
		}
	}
	require.NotNil(t, add)
	assert.Equal(t, model.ChunkTypeFunction, add.ChunkType)
	assert.Contains(t, add.Doc, "Add sums two integers")
	assert.Contains(t, add.Signature, "func Add(a int, b int) int")

	var sawCall bool
	for _, e := range result.CallEdges {
		if e.CalleeName == "helper" && e.CallerChunkID == add.ID {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "expected a call edge from Add to helper")
}

func TestParseFileRelationships_EmptyFileYieldsNothing(t *testing.T) {
	p := NewParser()
	defer p.Close()

	result, err := p.ParseFileRelationships(context.Background(), "empty.go", nil, model.LanguageGo, time.Now(), nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.CallEdges)
}

func TestChunkID_RoundTrips(t *testing.T) {
	id := model.BuildChunkID("a/b/c.go", 10, "deadbeefcafef00d", nil)
	origin, line, hash, win, ok := model.ParseChunkID(id)
	require.True(t, ok)
	assert.Equal(t, "a/b/c.go", origin)
	assert.Equal(t, 10, line)
	assert.Equal(t, "deadbeefcafef00d", hash)
	assert.Nil(t, win)

	widx := 2
	windowed := model.BuildChunkID("a/b/c.go", 10, "deadbeefcafef00d", &widx)
	origin, line, hash, win, ok = model.ParseChunkID(windowed)
	require.True(t, ok)
	assert.Equal(t, "a/b/c.go", origin)
	assert.Equal(t, 10, line)
	assert.Equal(t, "deadbeefcafef00d", hash)
	require.NotNil(t, win)
	assert.Equal(t, 2, *win)
}
