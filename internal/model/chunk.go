// Package model defines the shared data types persisted and exchanged
// across the indexing pipeline, store, vector index, and retrieval
// packages: chunks, call/type edges, notes, and index metadata.
package model

import (
	"strconv"
	"strings"
	"time"
)

// ChunkType classifies the structural unit a Chunk represents.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeMethod    ChunkType = "method"
	ChunkTypeStruct    ChunkType = "struct"
	ChunkTypeEnum      ChunkType = "enum"
	ChunkTypeTrait     ChunkType = "trait"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeConstant  ChunkType = "constant"
	ChunkTypeSection   ChunkType = "section"
)

// IsCallable reports whether chunks of this type can appear as a call
// edge's caller (functions and methods; not data-only declarations).
func (c ChunkType) IsCallable() bool {
	switch c {
	case ChunkTypeFunction, ChunkTypeMethod:
		return true
	default:
		return false
	}
}

func (c ChunkType) String() string { return string(c) }

// Language enumerates the source languages the parser understands.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguageJavaScript Language = "javascript"
	LanguageJSX        Language = "jsx"
	LanguagePython     Language = "python"
	LanguageMarkdown   Language = "markdown"
	LanguageText       Language = "text"
)

func (l Language) String() string { return string(l) }

// Chunk is a retrievable, semantically meaningful unit of source text.
// See SPEC_FULL.md §3 for the invariants this type must uphold (I1-I5).
type Chunk struct {
	ID          string
	Origin      string // project-relative, forward-slash path
	Name        string
	ChunkType   ChunkType
	Language    Language
	LineStart   int
	LineEnd     int
	Signature   string
	Doc         string
	Content     string
	ContentHash string
	ParentID    string // optional
	WindowIdx   *int   // nil for whole chunks
	Embedding   []float32
	SourceMtime time.Time
}

// IsWindow reports whether this chunk is a window shard of a larger chunk.
func (c *Chunk) IsWindow() bool { return c.WindowIdx != nil }

// IsPrimary reports whether this chunk is the "primary" row for its
// logical unit: either not windowed at all, or window 0 of a windowed one.
func (c *Chunk) IsPrimary() bool { return c.WindowIdx == nil || *c.WindowIdx == 0 }

// BuildChunkID constructs the canonical chunk id string:
// <origin>:<line_start>:<content_hash_prefix>[:w<window_idx>].
func BuildChunkID(origin string, lineStart int, contentHashPrefix string, windowIdx *int) string {
	var b strings.Builder
	b.WriteString(origin)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(lineStart))
	b.WriteByte(':')
	b.WriteString(contentHashPrefix)
	if windowIdx != nil {
		b.WriteString(":w")
		b.WriteString(strconv.Itoa(*windowIdx))
	}
	return b.String()
}

// ParseChunkID splits a chunk id back into its components, stripping
// from the right per SPEC_FULL.md §6: window suffix, then hash prefix,
// then line number; whatever remains is the origin.
func ParseChunkID(id string) (origin string, lineStart int, hashPrefix string, windowIdx *int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) < 3 {
		return "", 0, "", nil, false
	}
	last := parts[len(parts)-1]
	if len(last) > 1 && last[0] == 'w' {
		if n, err := strconv.Atoi(last[1:]); err == nil {
			idx := n
			windowIdx = &idx
			parts = parts[:len(parts)-1]
		}
	}
	if len(parts) < 3 {
		return "", 0, "", nil, false
	}
	hashPrefix = parts[len(parts)-1]
	lineStr := parts[len(parts)-2]
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return "", 0, "", nil, false
	}
	origin = strings.Join(parts[:len(parts)-2], ":")
	return origin, line, hashPrefix, windowIdx, true
}

// EdgeKind classifies a TypeEdge relationship.
type EdgeKind string

const (
	EdgeKindParam   EdgeKind = "param"
	EdgeKindReturn  EdgeKind = "return"
	EdgeKindField   EdgeKind = "field"
	EdgeKindImpl    EdgeKind = "impl"
	EdgeKindBound   EdgeKind = "bound"
	EdgeKindAlias   EdgeKind = "alias"
	EdgeKindExtends EdgeKind = "extends"
	EdgeKindImport  EdgeKind = "import"
)

// CallEdge records a call site: caller chunk calls a named callee.
// Callee is resolved by name, not id, since cross-file resolution of
// calls is heuristic (name/file based), not a compile-time fact.
type CallEdge struct {
	CallerChunkID string
	CalleeName    string
	CallLine      int
}

// TypeEdge records a reference from a chunk to a named type.
type TypeEdge struct {
	SourceChunkID  string
	TargetTypeName string
	Kind           EdgeKind
	Line           int
}

// Sentiment is the discrete sentiment scale a Note may carry.
type Sentiment float64

const (
	SentimentVeryNegative Sentiment = -1
	SentimentNegative     Sentiment = -0.5
	SentimentNeutral      Sentiment = 0
	SentimentPositive     Sentiment = 0.5
	SentimentVeryPositive Sentiment = 1
)

// Note is a human-authored annotation that participates in ranking.
// Owned by the notes file (internal/notesfile); the Store holds an
// indexed snapshot for fast lookup during retrieval.
type Note struct {
	ID        string
	Text      string
	Sentiment Sentiment
	Mentions  []string
	CreatedAt time.Time
}

// IndexMetadata is the store's singleton metadata row.
type IndexMetadata struct {
	SchemaVersion int
	ModelName     string
	ModelDim      int
	UpdatedAt     time.Time
}

// CallGraph is the forward/reverse name-keyed adjacency used by
// structural queries (callers/callees/impact/gather).
type CallGraph struct {
	Forward map[string][]CallEdge // caller chunk id -> edges out
	Reverse map[string][]string   // callee name -> caller chunk ids
}

// TypeGraph is the analogous adjacency for type edges.
type TypeGraph struct {
	Forward map[string][]TypeEdge // source chunk id -> edges out
	Reverse map[string][]string   // target type name -> source chunk ids
}
