package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/cqsconfig"
	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

func newDriftCmd() *cobra.Command {
	var (
		referenceRoot string
		threshold     float64
		minDrift      float64
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare same-name chunks against a reference index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if referenceRoot == "" {
				return fatalf("drift: --reference is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			refAbs, err := filepath.Abs(referenceRoot)
			if err != nil {
				return err
			}
			refCfg, err := cqsconfig.Load(refAbs)
			if err != nil {
				return err
			}
			refDB := filepath.Join(refAbs, refCfg.IndexDir, "cqs.sqlite3")
			reference, err := storage.Open(refDB, storage.OpenOptions{
				ModelName:  refCfg.Embeddings.ModelName,
				ModelDim:   refCfg.Embeddings.Dimensions + 1,
				AllowEmpty: false,
			})
			if err != nil {
				return err
			}
			defer reference.Close()

			if threshold <= 0 {
				threshold = 0.9
			}

			results, err := retrieval.NewGraphQueries(store).Drift(cmd.Context(), reference, threshold, minDrift)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.MissingSide != "" {
					fmt.Fprintf(out, "missing=%s  %s  %s\n", r.MissingSide, r.Name, r.Origin)
					continue
				}
				fmt.Fprintf(out, "drift=%.4f  %s  %s\n", r.Drift, r.Name, r.Origin)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&referenceRoot, "reference", "", "root of the reference project to diff against")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.9, "similarity below which a peer counts as drifted")
	cmd.Flags().Float64Var(&minDrift, "min-drift", 0, "minimum drift magnitude to report")
	return cmd
}
