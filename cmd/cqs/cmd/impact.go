package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newImpactCmd() *cobra.Command {
	var (
		depth        int
		includeTypes bool
	)

	cmd := &cobra.Command{
		Use:   "impact <name>",
		Short: "Show every chunk transitively affected by changing name",
		Args:  cobra.ExactArgs(1),
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

			results, err := retrieval.NewGraphQueries(store).Impact(cmd.Context(), args[0], depth, includeTypes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				test := ""
				if r.IsTest {
					test = " [test]"
				}
				fmt.Fprintf(out, "depth=%d  %s  %s:%d%s\n", r.Depth, r.Chunk.Name, r.Chunk.Origin, r.Chunk.LineStart, test)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 3, "max BFS depth (clamped to 10)")
	cmd.Flags().BoolVar(&includeTypes, "include-types", false, "also traverse type-usage edges")
	return cmd
}
