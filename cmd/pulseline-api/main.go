package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/pulseline/pulseline/pkg/history"
	"github.com/pulseline/pulseline/pkg/log"
	"github.com/pulseline/pulseline/pkg/notify"
	"github.com/pulseline/pulseline/pkg/progress"
)

const defaultPort = 9230

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "pulseline-api",
		Usage:                 "Serve run snapshots, timelines and graph validation over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for run history persistence (in-memory when unset)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "history-retention",
				Usage:   "How long to keep run archives before the sweeper prunes them",
				Value:   7 * 24 * time.Hour,
				Sources: cli.EnvVars("HISTORY_RETENTION"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the history retention sweep",
				Value:   "@hourly",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing Pulseline API")

			store, err := newStore(command.String("redis-url"))
			if err != nil {
				return err
			}

			engine := progress.NewEngine(log.WithModule("engine"), notify.NewSlogNotifier(logger))

			sweeper := history.NewSweeper(log.WithModule("history"), store, command.Duration("history-retention"))
			if err := sweeper.Start(ctx, command.String("sweep-schedule")); err != nil {
				return err
			}
			defer sweeper.Stop()

			api := NewAPI(logger, engine, store)

			return api.Start(command.Int("port"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func newStore(redisURL string) (history.Store, error) {
	if redisURL == "" {
		return history.NewMemoryStore(), nil
	}

	return history.NewRedisStore(redisURL)
}
