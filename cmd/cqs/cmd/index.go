package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/enumerate"
	"github.com/jamie8johnson/cqs-sub000/internal/notesfile"
	"github.com/jamie8johnson/cqs-sub000/internal/parsing"
	"github.com/jamie8johnson/cqs-sub000/internal/pipeline"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
	"github.com/jamie8johnson/cqs-sub000/internal/vectorindex"
)

// storeEmbeddingSource adapts storage.ChunkIterator to vectorindex's
// EmbeddingSource so a full rebuild can stream straight off the store
// without materializing every vector in memory at once.
type storeEmbeddingSource struct {
	it *storage.ChunkIterator
}

func (s storeEmbeddingSource) Next(ctx context.Context) (string, []float32, bool, error) {
	for {
		c, ok, err := s.it.Next()
		if err != nil || !ok {
			return "", nil, false, err
		}
		if len(c.Embedding) == 0 {
			continue
		}
		return c.ID, c.Embedding, true, nil
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project under --root",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, true)
			if err != nil {
				return err
			}
			defer store.Close()

			embedder, err := buildEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			lock, err := pipeline.AcquireLock(filepath.Join(rootDir, cfg.IndexDir))
			if err != nil {
				return err
			}
			defer lock.Release()

			enumer, err := enumerate.New()
			if err != nil {
				return err
			}

			p := pipeline.New(store, embedder, enumer, parsing.NewParser())
			snap, err := p.Run(ctx, pipeline.Config{
				RootDir:          rootDir,
				Include:          cfg.Paths.Include,
				Exclude:          cfg.Paths.Exclude,
				RespectGitignore: true,
				WindowTokens:     cfg.Pipeline.WindowTokens,
				OverlapTokens:    cfg.Pipeline.OverlapTokens,
				BatchSize:        cfg.Embeddings.BatchSize,
				ChannelDepth:     cfg.Pipeline.ChannelDepth,
				ParseWorkers:     cfg.Pipeline.ParserThreads,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed: %d files, %d parsed, %d embedded, %d cached, %d parse errors, %d gpu failures\n",
				snap.FilesWritten, snap.FilesParsed, snap.ChunksEmbedded, snap.ChunksCached, snap.ParseErrors, snap.GPUFailures)

			notesPath := filepath.Join(rootDir, "docs", "notes.toml")
			notes, err := notesfile.Load(notesPath)
			if err != nil {
				return err
			}
			summaries := make([]storage.NoteSummary, len(notes))
			for i, n := range notesfile.ToSummaries(notes) {
				summaries[i] = storage.NoteSummary{ID: n.ID, Text: n.Text, Sentiment: n.Sentiment, Mentions: n.Mentions}
			}
			if err := store.ReplaceNotes(ctx, summaries); err != nil {
				return err
			}

			dims := cfg.Embeddings.Dimensions + 1
			vecIdx, err := openVectorIndex(cfg, dims)
			if err != nil {
				return err
			}
			defer vecIdx.Close()

			it, err := store.StreamAll(ctx, nil)
			if err != nil {
				return err
			}
			defer it.Close()

			if err := vecIdx.BuildFromSource(ctx, storeEmbeddingSource{it: it}, 256); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "vector index rebuilt: %d notes synced\n", len(summaries))
			return nil
		},
	}
	return cmd
}
