// The sweeper periodically resumes automation runs whose wait period has
// elapsed. Several sweepers can run side by side; the claim on each due
// execution ensures a single resume.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/donorflow/donorflow/pkg/automation"
	"github.com/donorflow/donorflow/pkg/cmd"
	"github.com/donorflow/donorflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "donorflow-sweeper",
		EnableShellCompletion: true,
		Usage:                 "Resume suspended automation runs on a schedule",
		Flags: []cli.Flag{
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
				Name:    "schedule",
				Usage:   "Cron schedule for sweep runs",
				Value:   "@every 1m",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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

			logger := log.WithModule("donorflow-sweeper")

			logger.InfoContext(ctx, "Initializing DonorFlow sweeper")

			providers := cmd.NewDevProviders(logger)
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

			engine := automation.NewEngine(persistence, registry, eventBus, nil, logger)

			scheduler := cron.New()

			_, err = scheduler.AddFunc(command.String("schedule"), func() {
				sweepErr := engine.Sweep(ctx, time.Now().UTC())
				if sweepErr != nil {
					logger.ErrorContext(ctx, "Sweep failed", "error", sweepErr)
				}
			})
			if err != nil {
				return err
			}

			scheduler.Start()

			logger.InfoContext(ctx, "Sweeper started", "schedule", command.String("schedule"))

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down sweeper...")

			<-scheduler.Stop().Done()
			engine.Wait()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
