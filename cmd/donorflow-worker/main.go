package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/donorflow/donorflow/pkg/cmd"
	"github.com/donorflow/donorflow/pkg/log"
	"github.com/donorflow/donorflow/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "donorflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume CRM trigger events and run matching automations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the queue receiver (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list the queue receiver pops trigger events from",
				Value:   "donorflow:triggers",
				Sources: cli.EnvVars("REDIS_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "unsubscribe-base-url",
				Usage:   "Base URL for unsubscribe links in outgoing emails",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("UNSUBSCRIBE_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "sms-region",
				Usage:   "Default region for normalizing local phone numbers",
				Value:   "RO",
				Sources: cli.EnvVars("SMS_REGION"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export run traces over OTLP",
				Value:   false,
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("donorflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing DonorFlow worker")

			providers := cmd.NewDevProviders(logger)
			providers.UnsubscribeBaseURL = command.String("unsubscribe-base-url")
			providers.SMSDefaultRegion = command.String("sms-region")

			registry := cmd.NewRegistry(logger, providers)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "donorflow-worker")
				if err != nil {
					return err
				}
			}

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				logger,
				registry,
				tracer,
				command.String("redis-url"),
				command.String("redis-queue"),
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
