package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/retrieval"
)

func newDeadCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-code",
		Short: "List callable chunks never reached as a callee",
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

			chunks, err := retrieval.NewGraphQueries(store).DeadCode(cmd.Context())
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
	return cmd
}
