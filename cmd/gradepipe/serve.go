package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/coderated/gradepipe/internal/queue"
)

// serveConfig is the task queue server's environment configuration. Flags
// override the environment when set.
type serveConfig struct {
	Addr    string `env:"GRADEPIPE_ADDR, default=:8080"`
	TasksDB string `env:"GRADEPIPE_TASKS_DB, default=dist/tasks.db"`
}

func newServeCmd() *cobra.Command {
	var addr, tasksDB string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task queue server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg serveConfig
			if err := envconfig.Process(cmd.Context(), &cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if tasksDB != "" {
				cfg.TasksDB = tasksDB
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides GRADEPIPE_ADDR)")
	cmd.Flags().StringVar(&tasksDB, "db", "", "task database path (overrides GRADEPIPE_TASKS_DB)")
	return cmd
}

func runServe(ctx context.Context, cfg serveConfig) error {
	logger := slog.Default()

	store, err := queue.Open(cfg.TasksDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server := queue.NewServer(store, logger)
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("task queue server listening", "addr", cfg.Addr, "db", cfg.TasksDB)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
