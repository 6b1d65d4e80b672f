package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/coderated/gradepipe/internal/ledger"
	"github.com/coderated/gradepipe/internal/queue"
)

type genTasksConfig struct {
	TasksDB      string `env:"GRADEPIPE_TASKS_DB, default=dist/tasks.db"`
	MetaDir      string `env:"GRADEPIPE_META_DIR, default=meta"`
	QuestionsDir string `env:"GRADEPIPE_QUESTIONS_DIR, default=questions"`
}

func newGenTasksCmd() *cobra.Command {
	var metaDir, questionsDir, tasksDB string

	cmd := &cobra.Command{
		Use:   "gentasks",
		Short: "Rebuild the task table from the ledger tree",
		Long: "Walk every vote ledger under the meta directory and rebuild the task\n" +
			"database with one pending task per answer that has a vote but no\n" +
			"grading record. The existing database is replaced.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg genTasksConfig
			if err := envconfig.Process(cmd.Context(), &cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if metaDir != "" {
				cfg.MetaDir = metaDir
			}
			if questionsDir != "" {
				cfg.QuestionsDir = questionsDir
			}
			if tasksDB != "" {
				cfg.TasksDB = tasksDB
			}

			logger := slog.Default()

			// Reconciliation starts from scratch so stale rows never linger.
			if err := os.Remove(cfg.TasksDB); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old task db: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(cfg.TasksDB), 0o755); err != nil {
				return fmt.Errorf("create task db dir: %w", err)
			}

			store, err := queue.Open(cfg.TasksDB)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			inserted, err := queue.Reconcile(store, ledger.NewStore(cfg.MetaDir), cfg.QuestionsDir, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "RankTasks %d\n", inserted)
			return nil
		},
	}

	cmd.Flags().StringVar(&metaDir, "meta", "", "meta directory (overrides GRADEPIPE_META_DIR)")
	cmd.Flags().StringVar(&questionsDir, "questions", "", "questions directory (overrides GRADEPIPE_QUESTIONS_DIR)")
	cmd.Flags().StringVar(&tasksDB, "db", "", "task database path (overrides GRADEPIPE_TASKS_DB)")
	return cmd
}
