package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conveyor/pkg/cmd"
	"github.com/dukex/conveyor/pkg/log"
	"github.com/dukex/conveyor/pkg/trigger/schedule"
)

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"s"},
		Usage:   "Run the cron trigger service for stored workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (gochannel, kafka)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "reload-interval",
				Usage:   "How often to re-read workflows from the store (0 disables)",
				Value:   time.Minute,
				Sources: cli.EnvVars("SCHEDULE_RELOAD_INTERVAL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("conveyor-schedule")
			logger.InfoContext(ctx, "Initializing schedule trigger service")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			service := schedule.NewService(logger, store, eventBus)
			if err := service.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			interval := command.Duration("reload-interval")

			var reload <-chan time.Time

			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				reload = ticker.C
			}

			for {
				select {
				case <-reload:
					if err := service.Reload(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to reload schedules", "error", err)
					}
				case <-sigChan:
					logger.InfoContext(ctx, "Shutting down schedule trigger service")

					return service.Stop(ctx)
				case <-ctx.Done():
					return service.Stop(context.Background())
				}
			}
		},
	}
}
