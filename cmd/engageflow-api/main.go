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
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "engageflow-api",
		Usage:                 "Create and manage CRM workflows",
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
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "embedded-worker",
				Usage:   "Run the workflow worker inside the API process (required with the gochannel bus)",
				Value:   false,
				Sources: cli.EnvVars("EMBEDDED_WORKER"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression of the scheduled trigger for the embedded worker, empty disables it",
				Value:   scheduler.DefaultExpression,
				Sources: cli.EnvVars("SCHEDULE_CRON"),
			},
			&cli.DurationFlag{
				Name:    "resume-interval",
				Usage:   "How often the embedded worker resumes waiting runs",
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

			logger := log.WithModule("engageflow-api")

			logger.InfoContext(ctx, "Initializing EngageFlow API")

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

			eventBus, err := cmd.NewEventBus(logger, command.String("event-bus"), command.String("kafka-brokers"), "engageflow-api")
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

			if command.Bool("embedded-worker") {
				worker, err := cmd.NewWorker(persistence, eventBus, registry, cmd.WorkerConfig{
					Schedule:       command.String("schedule"),
					ResumeInterval: command.Duration("resume-interval"),
					Tracer:         cmd.NewTracer(ctx, logger, command.Bool("otel"), "engageflow-api"),
				}, logger)
				if err != nil {
					return err
				}

				err = worker.Start(ctx)
				if err != nil {
					return err
				}

				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()

					worker.Stop(stopCtx)
				}()
			}

			api := NewAPI(logger, persistence, registry, eventBus)

			return api.Start(ctx, int(command.Int("port")))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
