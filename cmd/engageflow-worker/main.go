// Package main runs the EngageFlow worker: it matches domain events to active
// workflows, executes their steps and resumes runs suspended by wait steps.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/engageflow/pkg/cmd"
	"github.com/dukex/engageflow/pkg/collaborators/logsink"
	"github.com/dukex/engageflow/pkg/log"
	"github.com/dukex/engageflow/pkg/scheduler"
	"github.com/dukex/engageflow/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func main() {
	command := &cli.Command{
		Name:                  "engageflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute CRM workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://<dir> or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "continuation-url",
				Usage:   "Optional redis:// URL storing suspended runs",
				Sources: cli.EnvVars("CONTINUATION_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression of the scheduled trigger, empty disables it",
				Value:   scheduler.DefaultExpression,
				Sources: cli.EnvVars("SCHEDULE_CRON"),
			},
			&cli.DurationFlag{
				Name:    "resume-interval",
				Usage:   "How often waiting runs are checked for resumption",
				Value:   workflow.DefaultResumeInterval,
				Sources: cli.EnvVars("RESUME_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("engageflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing EngageFlow Worker")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), command.String("continuation-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(context.Background())
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(logger, command.String("event-bus"), command.String("kafka-brokers"), "engageflow-worker")
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registry, err := cmd.NewRegistry(logger, command.String("plugins-path"), logsink.New(logger).Collaborators())
			if err != nil {
				return err
			}

			worker, err := cmd.NewWorker(persistence, eventBus, registry, cmd.WorkerConfig{
				Schedule:       command.String("schedule"),
				ResumeInterval: command.Duration("resume-interval"),
				Tracer:         cmd.NewTracer(ctx, logger, command.Bool("otel"), "engageflow-worker"),
			}, logger)
			if err != nil {
				return err
			}

			return run(ctx, worker)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// run starts the worker and blocks until ctx is cancelled, then drains it.
func run(ctx context.Context, worker runner) error {
	err := worker.Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	worker.Stop(stopCtx)

	return nil
}
