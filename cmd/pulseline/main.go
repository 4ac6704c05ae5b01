// Package main provides the Pulseline console: validate a declared run
// graph, then start and watch a remote execution in real time.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/pulseline/pulseline/pkg/cmd"
	"github.com/pulseline/pulseline/pkg/config"
	"github.com/pulseline/pulseline/pkg/console"
	"github.com/pulseline/pulseline/pkg/graph"
	"github.com/pulseline/pulseline/pkg/log"
	"github.com/pulseline/pulseline/pkg/models"
	"github.com/pulseline/pulseline/pkg/notify"
	"github.com/pulseline/pulseline/pkg/otelhelper"
	"github.com/pulseline/pulseline/pkg/progress"
	"github.com/pulseline/pulseline/pkg/reconcile"
)

func main() {
	root := &cli.Command{
		Name:                  "pulseline",
		Usage:                 "Watch remote node-graph and agent runs in real time",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the console YAML config",
				Sources: cli.EnvVars("PULSELINE_CONFIG"),
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
		Commands: []*cli.Command{
			validateCommand(),
			watchCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a declared run graph without starting a run",
		ArgsUsage: "<graph.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			g, err := loadGraph(command.Args().First())
			if err != nil {
				return err
			}

			verdict := graph.Validate(g)

			return printJSON(verdict)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Attach to a running execution and follow its progress",
		ArgsUsage: "<execution-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "graph",
				Usage: "Graph file to validate before attaching",
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Emit OpenTelemetry spans for the watched run",
				Sources: cli.EnvVars("PULSELINE_TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("console")

			cfg, err := loadConfig(command.String("config"))
			if err != nil {
				return err
			}

			executionID := command.Args().First()

			sess, err := buildConsole(cfg, logger)
			if err != nil {
				return err
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "pulseline-console")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				sess = sess.WithTracer(tracer)
			}

			if graphPath := command.String("graph"); graphPath != "" {
				g, err := loadGraph(graphPath)
				if err != nil {
					return err
				}

				verdict, err := sess.Prepare(ctx, g)
				if err != nil {
					_ = printJSON(verdict)

					return err
				}
			}

			sess.Track(executionID)

			run, err := sess.Watch(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Run finished",
				"execution_id", run.ExecutionID,
				"status", string(run.Status),
			)

			return printJSON(sess.Snapshot())
		},
	}
}

func buildConsole(cfg *config.ConsoleConfig, logger *slog.Logger) (*console.Console, error) {
	trans, publisher, err := cmd.NewTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := cmd.NewHistoryStore(cfg)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.NewSlogNotifier(logger)
	if publisher != nil {
		notifier = notify.NewMultiNotifier(notifier, notify.NewBusNotifier(publisher))
	}

	engine := progress.NewEngine(log.WithModule("engine"), notifier)

	executorClient := reconcile.NewHTTPClient(cfg.Executor.BaseURL)
	reconciler := reconcile.NewReconciler(
		log.WithModule("reconcile"),
		executorClient,
		executorClient,
		engine,
		cfg.Executor.PollInterval.Std(),
	)

	return console.New(logger, engine, trans, reconciler, executorClient, store), nil
}

func loadConfig(path string) (*config.ConsoleConfig, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

func loadGraph(path string) (*models.Graph, error) {
	if path == "" {
		return nil, errors.New("graph file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file %s: %w", path, err)
	}

	var g models.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	return &g, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
