package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newGatherCmd() *cobra.Command {
	var (
		direction string
		depth     int
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "gather <seed...>",
		Short: "Collect chunks reachable from seed names, scored by decayed proximity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := retrieval.NewGraphQueries(store).Gather(cmd.Context(), args, direction, depth, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%.4f  %s  %s:%d\n", r.Score, r.Chunk.Name, r.Chunk.Origin, r.Chunk.LineStart)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "callees", "traversal direction: callers or callees")
	cmd.Flags().IntVar(&depth, "depth", 3, "max BFS depth")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}
