// Package pipeline runs the concurrent indexing data flow described in
// SPEC_FULL.md §4.6: enumerate files, parse each into chunks and call/type
// edges, look up already-embedded content in the store's hash cache,
// embed whatever's left, and write each file's chunks atomically. The
// stages run concurrently over bounded channels rather than as one big
// batch, so a slow embedder never stalls enumeration or parsing.
package pipeline

import (
	"context"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/embedding"
	"github.com/jamie8johnson/cqs-sub000/internal/enumerate"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/parsing"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

// Config controls one indexing run.
type Config struct {
	RootDir          string
	Include          []string
	Exclude          []string
	RespectGitignore bool
	MaxFileSize      int64

	WindowTokens  int
	OverlapTokens int

	BatchSize    int // embedding batch size, default embedding.DefaultBatchSize
	ChannelDepth int // default 256
	ParseWorkers int // default min(NumCPU, 8)
}

func (c *Config) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = embedding.DefaultBatchSize
	}
	if c.ChannelDepth <= 0 {
		c.ChannelDepth = 256
	}
	if c.ParseWorkers <= 0 {
		c.ParseWorkers = runtime.NumCPU()
		if c.ParseWorkers > 8 {
			c.ParseWorkers = 8
		}
	}
}

// Pipeline wires together the stages that turn a repository into
// stored, embedded chunks.
type Pipeline struct {
	Store     *storage.Store
	Embedder  embedding.Embedder
	Enumer    *enumerate.Enumerator
	Parser    *parsing.Parser
	Progress  *Progress
}

func New(store *storage.Store, embedder embedding.Embedder, enumer *enumerate.Enumerator, parser *parsing.Parser) *Pipeline {
	return &Pipeline{
		Store:    store,
		Embedder: embedder,
		Enumer:   enumer,
		Parser:   parser,
		Progress: &Progress{},
	}
}

// parsedFile is one file's output from parsing, carried through the
// prep/embed stages until every chunk has an embedding and the file is
// ready for a single atomic write.
type parsedFile struct {
	Origin    string
	Mtime     time.Time
	Chunks    []*model.Chunk
	CallEdges []model.CallEdge
	TypeEdges []model.TypeEdge
}

// Run executes one indexing pass over cfg.RootDir, returning once every
// discovered file has been parsed, embedded (or pulled from cache), and
// written, or ctx is canceled. On cancellation the pipeline drains
// in-flight work up to the next safe boundary and checkpoints the WAL
// before returning, per SPEC_FULL.md §5's interrupt handling.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Snapshot, error) {
	cfg.setDefaults()

	g, gctx := errgroup.WithContext(ctx)

	fileCh := make(chan enumerate.FileInfo, cfg.ChannelDepth)
	parsedCh := make(chan *parsedFile, cfg.ChannelDepth)
	writeCh := make(chan *parsedFile, cfg.ChannelDepth)

	g.Go(func() error { return p.enumerateStage(gctx, cfg, fileCh) })

	// Parse workers fan in to parsedCh; a nested errgroup lets the
	// group close parsedCh once every worker has exited, which the
	// outer g.Wait (spanning embed/write too) can't express directly.
	g.Go(func() error {
		var workers errgroup.Group
		for i := 0; i < cfg.ParseWorkers; i++ {
			workers.Go(func() error { return p.parseStage(gctx, cfg, fileCh, parsedCh) })
		}
		err := workers.Wait()
		close(parsedCh)
		return err
	})

	g.Go(func() error { return p.embedStage(gctx, cfg, parsedCh, writeCh) })
	g.Go(func() error { return p.writeStage(gctx, writeCh) })

	err := g.Wait()

	if ckErr := p.Store.Checkpoint(context.Background()); ckErr != nil && err == nil {
		err = ckErr
	}
	return p.Progress.Snapshot(), err
}

func (p *Pipeline) enumerateStage(ctx context.Context, cfg Config, out chan<- enumerate.FileInfo) error {
	defer close(out)

	results, err := p.Enumer.Enumerate(ctx, enumerate.Options{
		RootDir:          cfg.RootDir,
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.RespectGitignore,
		MaxFileSize:      cfg.MaxFileSize,
	})
	if err != nil {
		return err
	}

	for r := range results {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.Error != nil {
			p.Progress.AddParseError(1)
			continue
		}
		p.Progress.AddEnumerated(1)

		mtime := time.Unix(r.File.ModTime, 0)
		needs, err := p.Store.NeedsReindex(ctx, r.File.Path, mtime)
		if err != nil {
			return err
		}
		if !needs {
			continue
		}

		select {
		case out <- *r.File:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pipeline) parseStage(ctx context.Context, cfg Config, in <-chan enumerate.FileInfo, out chan<- *parsedFile) error {
	counter := tokenCounter{p.Embedder}

	for {
		var fi enumerate.FileInfo
		var ok bool
		select {
		case fi, ok = <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		lang, supported := parsing.LanguageForPath(fi.Path)
		if !supported {
			continue
		}
		source, err := os.ReadFile(fi.AbsPath)
		if err != nil {
			p.Progress.AddParseError(1)
			continue
		}

		result, err := p.Parser.ParseFileRelationships(ctx, fi.Path, source, lang, time.Unix(fi.ModTime, 0), counter, cfg.WindowTokens, cfg.OverlapTokens)
		if err != nil {
			p.Progress.AddParseError(1)
			continue
		}
		p.Progress.AddParsed(1)

		pf := &parsedFile{
			Origin:    fi.Path,
			Mtime:     time.Unix(fi.ModTime, 0),
			Chunks:    result.Chunks,
			CallEdges: result.CallEdges,
			TypeEdges: result.TypeEdges,
		}
		select {
		case out <- pf:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// embedStage fills in every chunk's embedding, preferring the store's
// hash cache over a fresh embed call, per SPEC_FULL.md §8's "identical
// content never re-embedded" property. It runs as a single goroutine:
// fan-in from many parse workers, fan-out of embed batches is internal
// to EmbedBatch (which itself may shard across GPU/CPU).
func (p *Pipeline) embedStage(ctx context.Context, cfg Config, in <-chan *parsedFile, out chan<- *parsedFile) error {
	defer close(out)

	for {
		var pf *parsedFile
		var ok bool
		select {
		case pf, ok = <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := p.fillEmbeddings(ctx, cfg, pf); err != nil {
			return err
		}

		select {
		case out <- pf:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) fillEmbeddings(ctx context.Context, cfg Config, pf *parsedFile) error {
	hashes := make([]string, 0, len(pf.Chunks))
	for _, c := range pf.Chunks {
		hashes = append(hashes, c.ContentHash)
	}
	cached, err := p.Store.GetEmbeddingsByHashes(ctx, hashes)
	if err != nil {
		return err
	}

	var toEmbed []*model.Chunk
	for _, c := range pf.Chunks {
		if vec, ok := cached[c.ContentHash]; ok {
			c.Embedding = vec
			p.Progress.AddCached(1)
			continue
		}
		toEmbed = append(toEmbed, c)
	}

	for start := 0; start < len(toEmbed); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vecs, err := p.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			p.Progress.AddGPUFailure(int64(len(batch)))
			return cqserrors.EmbedFailure("pipeline.embed_stage", err)
		}
		for i, c := range batch {
			c.Embedding = vecs[i]
		}
		p.Progress.AddEmbedded(int64(len(batch)))
	}
	return nil
}

func (p *Pipeline) writeStage(ctx context.Context, in <-chan *parsedFile) error {
	expectedDim := p.Embedder.Dimensions() + 1 // +1 for the sentiment component every stored vector carries
	for {
		var pf *parsedFile
		var ok bool
		select {
		case pf, ok = <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := p.Store.UpsertChunksAndEdges(ctx, pf.Origin, pf.Chunks, pf.CallEdges, pf.TypeEdges, pf.Mtime, expectedDim); err != nil {
			return err
		}
		p.Progress.AddWritten(1)
	}
}

// tokenCounter adapts an embedding.Embedder to parsing.TokenCounter so
// chunk windowing matches the embedder's own subword accounting.
type tokenCounter struct {
	e embedding.Embedder
}

func (t tokenCounter) TokenCount(text string) int { return t.e.TokenCount(text) }
