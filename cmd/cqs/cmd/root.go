// Package cmd provides the cqs CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/cqslog"
	"github.com/jamie8johnson/cqs-sub000/internal/cqsconfig"
	"github.com/jamie8johnson/cqs-sub000/internal/embedding"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
	"github.com/jamie8johnson/cqs-sub000/internal/vectorindex"
	"github.com/jamie8johnson/cqs-sub000/pkg/version"
)

var (
	rootDir string
	debug   bool
)

// NewRootCmd builds the cqs root command and every subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cqs",
		Short:   "Local semantic+lexical code search",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logCfg := cqslog.DefaultConfig(filepath.Join(rootDir, cfg.IndexDir))
			if debug {
				logCfg.Level = "debug"
			}
			logger, _, err := cqslog.Setup(logCfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root to index/search")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCallersCmd())
	cmd.AddCommand(newCalleesCmd())
	cmd.AddCommand(newImpactCmd())
	cmd.AddCommand(newGatherCmd())
	cmd.AddCommand(newDriftCmd())
	cmd.AddCommand(newDeadCodeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// loadConfig layers cqsconfig over rootDir.
func loadConfig() (cqsconfig.Config, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return cqsconfig.Config{}, err
	}
	return cqsconfig.Load(abs)
}

// openStore opens the SQLite index under cfg.IndexDir, validating
// model identity against the configured embedder dimensions.
func openStore(cfg cqsconfig.Config, allowEmpty bool) (*storage.Store, error) {
	indexDir := filepath.Join(rootDir, cfg.IndexDir)
	dbPath := filepath.Join(indexDir, "cqs.sqlite3")
	return storage.Open(dbPath, storage.OpenOptions{
		ModelName:  cfg.Embeddings.ModelName,
		ModelDim:   cfg.Embeddings.Dimensions + 1,
		AllowEmpty: allowEmpty,
	})
}

// buildEmbedder constructs the configured embedder: an HTTP-backed GPU
// embedder with CPU fallback when a gpu_endpoint is set, otherwise the
// static CPU embedder alone. Either is wrapped in an LRU cache, per
// spec's "identical content never re-embedded" cache tier above the
// store's persistent hash cache.
func buildEmbedder(ctx context.Context, cfg cqsconfig.Config) (embedding.Embedder, error) {
	cpu := embedding.NewStaticEmbedder()

	var base embedding.Embedder = cpu
	if cfg.Embeddings.GPUEndpoint != "" {
		gpu, err := embedding.NewHTTPEmbedder(ctx, embedding.HTTPConfig{
			Endpoint: cfg.Embeddings.GPUEndpoint,
			Model:    cfg.Embeddings.ModelName,
		})
		if err != nil {
			slog.Warn("gpu_embedder_unavailable_using_cpu_only", slog.String("error", err.Error()))
		} else {
			base = embedding.NewFallbackEmbedder(gpu, cpu, slog.Default())
		}
	}

	cacheSize := cfg.Embeddings.CacheSize
	if cacheSize <= 0 {
		cacheSize = embedding.DefaultBatchSize * 100
	}
	return embedding.NewCachedEmbedder(base, cacheSize), nil
}

// openVectorIndex opens the on-disk ANN index if one exists; callers
// that find none loaded fall back to retrieval's brute-force path.
func openVectorIndex(cfg cqsconfig.Config, dims int) (*vectorindex.Index, error) {
	dir := filepath.Join(rootDir, cfg.IndexDir, "vector")
	return vectorindex.Open(dir, vectorindex.DefaultConfig(dims))
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
