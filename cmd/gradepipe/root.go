package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gradepipe",
		Short:         "Answer-grading consensus pipeline",
		Long:          "gradepipe grades answers to programming questions with LLM judges:\na task queue server leases grading tasks, ranking workers call judge\nmodels, and completions accumulate in per-question vote ledgers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Optional; absence of a .env file is normal in production.
			_ = godotenv.Load()
			setupLogger()
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newGenTasksCmd(),
		newVerifyCmd(),
	)
	return root
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
