package parsing

import (
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// DefaultWindowTokens is the token-count threshold above which a chunk
// is split into overlapping windows.
const DefaultWindowTokens = 256

// DefaultOverlapTokens is the default window stride overlap. Must be
// at least half the stride per SPEC_FULL.md §4.2.
const DefaultOverlapTokens = 128

// TokenCounter is implemented by an embedder's tokenizer so the parser
// can window chunks using the same token accounting the embedder will
// use at embed time. Kept as an interface here (rather than importing
// internal/embedding) to avoid a parsing<->embedding import cycle.
type TokenCounter interface {
	TokenCount(text string) int
}

// wordTokenCounter is the fallback counter used when no embedder
// tokenizer is supplied: splits on whitespace, a reasonable proxy for
// subword token count in source text.
type wordTokenCounter struct{}

func (wordTokenCounter) TokenCount(text string) int {
	return len(strings.Fields(text))
}

// DefaultTokenCounter is used when the caller does not provide one.
var DefaultTokenCounter TokenCounter = wordTokenCounter{}

// windowChunk splits an over-long chunk into overlapping windows by
// line, using counter to measure token budgets. Window 0 keeps the
// parent's doc and signature; subsequent windows carry neither, per
// SPEC_FULL.md §4.2.
func windowChunk(c *model.Chunk, counter TokenCounter, windowTokens, overlapTokens int) []*model.Chunk {
	if counter.TokenCount(c.Content) <= windowTokens {
		return []*model.Chunk{c}
	}
	if overlapTokens*2 < windowTokens {
		overlapTokens = windowTokens / 2
	}

	lines := strings.Split(c.Content, "\n")
	stride := windowTokens - overlapTokens
	if stride <= 0 {
		stride = windowTokens
	}

	var windows []*model.Chunk
	idx := 0
	start := 0
	for start < len(lines) {
		end := start
		tokens := 0
		lineTokens := make([]int, 0, windowTokens)
		for end < len(lines) && tokens < windowTokens {
			t := counter.TokenCount(lines[end])
			lineTokens = append(lineTokens, t)
			tokens += t
			end++
		}
		if end <= start {
			end = start + 1
			lineTokens = append(lineTokens, counter.TokenCount(lines[start]))
		}
		windowContent := strings.Join(lines[start:end], "\n")
		windowLineStart := c.LineStart + start
		windowLineEnd := c.LineStart + end - 1

		hash := contentHash(windowContent)
		wIdx := idx
		wc := &model.Chunk{
			ID:          model.BuildChunkID(c.Origin, windowLineStart, hashPrefix(hash), &wIdx),
			Origin:      c.Origin,
			Name:        c.Name,
			ChunkType:   c.ChunkType,
			Language:    c.Language,
			LineStart:   windowLineStart,
			LineEnd:     windowLineEnd,
			Content:     windowContent,
			ContentHash: hash,
			ParentID:    c.ID,
			WindowIdx:   &wIdx,
			SourceMtime: c.SourceMtime,
		}
		if idx == 0 {
			wc.Doc = c.Doc
			wc.Signature = c.Signature
		}
		windows = append(windows, wc)
		idx++

		if end >= len(lines) {
			break
		}

		// Advance start by stride tokens, walked in the same per-line
		// token units end was computed in above, so the next window's
		// start never lands past this window's end and nothing in
		// between goes unembedded.
		advanced := 0
		nextStart := start + len(lineTokens)
		for i, t := range lineTokens {
			if advanced >= stride {
				nextStart = start + i
				break
			}
			advanced += t
		}
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}
	return windows
}
