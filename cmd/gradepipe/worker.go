package main

import (
	"fmt"
	"log/slog"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/coderated/gradepipe/internal/llm"
	"github.com/coderated/gradepipe/internal/llm/configuration"
	"github.com/coderated/gradepipe/internal/worker"
)

type workerConfig struct {
	ServerURL         string `env:"GRADEPIPE_SERVER_URL, default=http://localhost:8080"`
	RequestsPerMinute int    `env:"GRADEPIPE_RATE_PER_MINUTE, default=60"`
	ErrorLogPath      string `env:"GRADEPIPE_ERROR_LOG, default=errors/worker.log"`
}

func newWorkerCmd() *cobra.Command {
	var after, before, mod, take int

	cmd := &cobra.Command{
		Use:   "worker <judge-model>",
		Short: "Run a ranking worker for one judge model",
		Long: "Run a ranking worker that leases tasks from the queue server and\n" +
			"grades them with the given judge model. Use --after/--before or --mod\n" +
			"to shard the task range across parallel workers.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var envCfg workerConfig
			if err := envconfig.Process(cmd.Context(), &envCfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := slog.Default()

			gatewayCfg := configuration.DefaultConfig()
			gatewayCfg.LoadKeys()
			gateway, err := llm.NewGateway(gatewayCfg, logger)
			if err != nil {
				return err
			}

			w := worker.New(worker.Config{
				ServerURL:         envCfg.ServerURL,
				Model:             args[0],
				After:             after,
				Before:            before,
				Mod:               mod,
				Take:              take,
				RequestsPerMinute: envCfg.RequestsPerMinute,
				ErrorLogPath:      envCfg.ErrorLogPath,
			}, gateway, logger)

			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&after, "after", 0, "only grade tasks with post id >= after")
	cmd.Flags().IntVar(&before, "before", 0, "only grade tasks with post id < before")
	cmd.Flags().IntVar(&mod, "mod", 0, "only grade tasks whose post id is divisible by mod")
	cmd.Flags().IntVar(&take, "take", 1, "tasks to lease per poll")
	return cmd
}
