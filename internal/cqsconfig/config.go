// Package cqsconfig provides layered YAML configuration for cqs,
// modeled on the same user-config / project-config / env-var precedence
// chain the teacher repository uses for its own search tuning.
package cqsconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete cqs configuration.
type Config struct {
	Version    int              `yaml:"version"`
	IndexDir   string           `yaml:"index_dir"`
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Languages  LanguagesConfig  `yaml:"languages"`
}

// PathsConfig configures which paths the enumerator includes/excludes
// beyond gitignore rules.
type PathsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// SearchConfig configures hybrid retrieval fusion weights.
//
// Precedence (highest wins): CQS_* env vars > project .cqs.yaml >
// user ~/.config/cqs/config.yaml > these defaults.
type SearchConfig struct {
	NameWeight     float64 `yaml:"name_weight"`
	BM25Weight     float64 `yaml:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	RRFConstant    int     `yaml:"rrf_constant"`
	MaxResults     int     `yaml:"max_results"`
	NoteBoostCap   float64 `yaml:"note_boost_cap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider    string `yaml:"provider"` // "gpu" or "cpu"
	ModelName   string `yaml:"model_name"`
	Dimensions  int    `yaml:"dimensions"`
	BatchSize   int    `yaml:"batch_size"`
	GPUEndpoint string `yaml:"gpu_endpoint"`
	CacheSize   int    `yaml:"cache_size"`
}

// PipelineConfig configures the concurrent indexing pipeline.
type PipelineConfig struct {
	ParserThreads int `yaml:"parser_threads"`
	ChannelDepth  int `yaml:"channel_depth"`
	MaxChunkBytes int `yaml:"max_chunk_bytes"`
	WindowTokens  int `yaml:"window_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// LanguagesConfig toggles per-language parsing.
type LanguagesConfig struct {
	Enabled map[string]bool `yaml:"enabled"`
}

// Default returns the baked-in configuration.
func Default() Config {
	return Config{
		Version:  1,
		IndexDir: ".cqs",
		Search: SearchConfig{
			NameWeight:     0.2,
			BM25Weight:     1.0,
			SemanticWeight: 1.0,
			RRFConstant:    60,
			MaxResults:     50,
			NoteBoostCap:   0.15,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "cpu",
			ModelName:  "cqs-static-v1",
			Dimensions: 256,
			BatchSize:  32,
			CacheSize:  1000,
		},
		Pipeline: PipelineConfig{
			ParserThreads: 4,
			ChannelDepth:  256,
			MaxChunkBytes: 1 << 20,
			WindowTokens:  256,
			OverlapTokens: 128,
		},
		Languages: LanguagesConfig{
			Enabled: map[string]bool{
				"go": true, "typescript": true, "tsx": true,
				"javascript": true, "jsx": true, "python": true,
			},
		},
	}
}

// Load reads user config, then project config, then environment
// variables, layering each over Default().
func Load(projectRoot string) (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".config", "cqs", "config.yaml")
		if err := mergeFile(&cfg, userPath); err != nil {
			return cfg, err
		}
	}

	projectPath := filepath.Join(projectRoot, ".cqs.yaml")
	if err := mergeFile(&cfg, projectPath); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CQS_BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.BM25Weight = f
		}
	}
	if v := os.Getenv("CQS_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("CQS_NAME_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.NameWeight = f
		}
	}
	if v := os.Getenv("CQS_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("CQS_INDEX_DIR"); v != "" {
		cfg.IndexDir = v
	}
	if v := os.Getenv("CQS_GPU_ENDPOINT"); v != "" {
		cfg.Embeddings.GPUEndpoint = v
	}
}
