package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/embedding"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newSearchCmd() *cobra.Command {
	var (
		limit     int
		language  string
		chunkType string
		pathGlob  string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid lexical+semantic search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			embedder, err := buildEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			dims := cfg.Embeddings.Dimensions + 1
			vecIdx, err := openVectorIndex(cfg, dims)
			if err != nil {
				return err
			}
			defer vecIdx.Close()

			vec, err := embedder.Embed(ctx, embedding.QueryTaskPrefix+text)
			if err != nil {
				return err
			}

			searcher := retrieval.NewSearcher(store, vecIdx, cfg.Embeddings.Dimensions)
			searcher.NameWeight = cfg.Search.NameWeight
			searcher.NoteBoost = cfg.Search.NoteBoostCap

			var filter *retrieval.Filter
			if language != "" || chunkType != "" || pathGlob != "" {
				filter = &retrieval.Filter{
					Language:  model.Language(language),
					ChunkType: model.ChunkType(chunkType),
					PathGlob:  pathGlob,
				}
			}

			if limit <= 0 {
				limit = cfg.Search.MaxResults
			}

			results, err := searcher.SearchFiltered(ctx, retrieval.Query{
				Text:      text,
				Embedding: vec,
				Filter:    filter,
				Limit:     limit,
				Threshold: threshold,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%.4f  %s  %s:%d-%d\n", r.FinalScore, r.Chunk.Name, r.Chunk.Origin, r.Chunk.LineStart, r.Chunk.LineEnd)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max results (default from config)")
	cmd.Flags().StringVar(&language, "language", "", "filter by language")
	cmd.Flags().StringVar(&chunkType, "type", "", "filter by chunk type")
	cmd.Flags().StringVar(&pathGlob, "path", "", "filter by path glob")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum final score")
	return cmd
}
