package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newCallersCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "callers <name>",
		Short: "List chunks that call name",
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

			sites, err := retrieval.NewGraphQueries(store).Callers(cmd.Context(), args[0], file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range sites {
				fmt.Fprintf(out, "%s  %s:%d (calls at line %d)\n", s.Chunk.Name, s.Chunk.Origin, s.Chunk.LineStart, s.CallLine)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "disambiguate overloaded names by origin file")
	return cmd
}
