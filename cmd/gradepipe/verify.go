package main

import (
	"fmt"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/coderated/gradepipe/internal/ledger"
)

func newVerifyCmd() *cobra.Command {
	var metaDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every vote ledger for consistency",
		Long: "Walk the meta directory and report ledgers whose votes, reasons, or\n" +
			"grading history disagree. Exits non-zero when problems are found.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg genTasksConfig
			if err := envconfig.Process(cmd.Context(), &cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if metaDir != "" {
				cfg.MetaDir = metaDir
			}

			issues, err := ledger.NewStore(cfg.MetaDir).VerifyAll()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, issue := range issues {
				for _, e := range issue.Errors {
					fmt.Fprintf(out, "%s: %v\n", issue.Path, e)
				}
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d inconsistent ledgers", len(issues))
			}
			fmt.Fprintln(out, "all ledgers consistent")
			return nil
		},
	}

	cmd.Flags().StringVar(&metaDir, "meta", "", "meta directory (overrides GRADEPIPE_META_DIR)")
	return cmd
}
