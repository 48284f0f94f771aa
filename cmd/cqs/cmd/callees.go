package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newCalleesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "callees <name>",
		Short: "List chunks that name calls",
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

			chunks, err := retrieval.NewGraphQueries(store).Callees(cmd.Context(), args[0], file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range chunks {
				fmt.Fprintf(out, "%s  %s:%d\n", c.Name, c.Origin, c.LineStart)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "disambiguate overloaded names by origin file")
	return cmd
}
