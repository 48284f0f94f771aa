package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamie8johnson/cqs-sub000/internal/pipeline"
)

// checkResult is one diagnostic outcome, mirroring the pass/warn/fail
// tiering the teacher's preflight checker reports.
type checkResult struct {
	name    string
	ok      bool
	warn    bool
	message string
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose index health under --root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			indexDir := filepath.Join(rootDir, cfg.IndexDir)

			var results []checkResult

			if _, err := os.Stat(indexDir); err != nil {
				results = append(results, checkResult{name: "index directory", ok: false, message: "not found: run `cqs index` first"})
			} else {
				results = append(results, checkResult{name: "index directory", ok: true, message: indexDir})
			}

			if age, held := pipeline.HeldSince(indexDir); held {
				results = append(results, checkResult{name: "indexing lock", ok: false, warn: true,
					message: fmt.Sprintf("held for %s; another run may be in progress or a prior run crashed", age.Round(time.Second))})
			} else {
				results = append(results, checkResult{name: "indexing lock", ok: true, message: "free"})
			}

			store, err := openStore(cfg, true)
			if err != nil {
				results = append(results, checkResult{name: "index store", ok: false, message: err.Error()})
			} else {
				results = append(results, checkResult{name: "index store", ok: true, message: "opened cleanly"})
				store.Close()
			}

			vecDir := filepath.Join(indexDir, "vector")
			if _, err := os.Stat(vecDir); err != nil {
				results = append(results, checkResult{name: "vector index", ok: false, warn: true,
					message: "not built; search falls back to brute-force scoring"})
			} else {
				results = append(results, checkResult{name: "vector index", ok: true, message: vecDir})
			}

			out := cmd.OutOrStdout()
			failed := false
			for _, r := range results {
				status := "ok"
				switch {
				case !r.ok && r.warn:
					status = "warn"
				case !r.ok:
					status = "fail"
					failed = true
				}
				fmt.Fprintf(out, "[%-4s] %-16s %s\n", status, r.name, r.message)
			}
			if failed {
				return fmt.Errorf("doctor: one or more checks failed")
			}
			return nil
		},
	}
	return cmd
}
