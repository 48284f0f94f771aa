package parsing

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// ParseResult is the output of a single-pass parse of one file.
type ParseResult struct {
	Chunks    []*model.Chunk
	CallEdges []model.CallEdge
	TypeEdges []model.TypeEdge
}

// ParseFileRelationships produces chunks, call edges, and type refs for
// one source file in a single tree-sitter pass, per SPEC_FULL.md §4.2.
// It returns a ParseFailure-kind error only when tree-sitter cannot
// produce a root node; a file with zero structural matches yields a
// single Section-like fallback chunk and empty edge lists, never an
// error.
func (p *Parser) ParseFileRelationships(ctx context.Context, origin string, source []byte, lang model.Language, mtime time.Time, counter TokenCounter, windowTokens, overlapTokens int) (*ParseResult, error) {
	origin = filepath.ToSlash(origin)

	if len(source) == 0 {
		return &ParseResult{}, nil
	}

	tree, err := p.Parse(ctx, source, lang)
	if err != nil {
		return nil, err
	}

	cfg, ok := p.registry.GetByName(lang)
	if !ok {
		cfg = &LanguageConfig{Name: lang}
	}

	chunks := extractChunks(tree, origin, cfg)
	for _, c := range chunks {
		c.SourceMtime = mtime
	}

	callEdges := extractCallEdges(tree, cfg, chunks)
	typeEdges := extractTypeEdges(tree, cfg, chunks)

	if counter == nil {
		counter = DefaultTokenCounter
	}
	if windowTokens <= 0 {
		windowTokens = DefaultWindowTokens
	}
	if overlapTokens <= 0 {
		overlapTokens = DefaultOverlapTokens
	}

	var windowed []*model.Chunk
	for _, c := range chunks {
		windowed = append(windowed, windowChunk(c, counter, windowTokens, overlapTokens)...)
	}

	return &ParseResult{
		Chunks:    windowed,
		CallEdges: callEdges,
		TypeEdges: typeEdges,
	}, nil
}

// LanguageForPath infers a model.Language from a file path's extension,
// returning (lang, false) for unsupported/non-code files such as
// markdown or plain text.
func LanguageForPath(path string) (model.Language, bool) {
	cfg, ok := DefaultRegistry().GetByExtension(filepath.Ext(path))
	if !ok {
		return "", false
	}
	return cfg.Name, true
}
