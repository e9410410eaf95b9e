package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conveyor/pkg/cmd"
	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/log"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/otelhelper"
	"github.com/dukex/conveyor/pkg/persistence"
	"github.com/dukex/conveyor/pkg/run"
	"github.com/dukex/conveyor/pkg/secrets"
	"github.com/dukex/conveyor/pkg/workflow"
)

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Consume run requests from the event bus and execute them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
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
			&cli.StringFlag{
				Name:    "secrets-provider",
				Usage:   "Secrets provider URL (env://, redis://host/0?scope=acme)",
				Sources: cli.EnvVars("SECRETS_PROVIDER_URL"),
			},
			&cli.StringFlag{
				Name:    "artifacts-path",
				Usage:   "Directory for uploaded artifacts",
				Value:   "./data/artifacts",
				Sources: cli.EnvVars("ARTIFACTS_PATH"),
			},
			&cli.StringFlag{
				Name:    "shell",
				Usage:   "Shell used for run steps",
				Sources: cli.EnvVars("CONVEYOR_SHELL"),
			},
			&cli.IntFlag{
				Name:    "max-parallel",
				Usage:   "Run-wide cap on concurrently running job instances (0 = unlimited)",
				Sources: cli.EnvVars("MAX_PARALLEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export run and job spans over OTLP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("conveyor-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing worker")

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

			opts := []run.Option{
				run.WithEventBus(eventBus),
				run.WithPersistence(store),
			}
			if command.Int("max-parallel") > 0 {
				opts = append(opts, run.WithMaxParallel(command.Int("max-parallel")))
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "conveyor-worker")
				if err != nil {
					return err
				}

				opts = append(opts, run.WithTracer(tracer))
			}

			worker := NewWorker(
				workerID,
				logger,
				store,
				eventBus,
				run.NewCoordinator(logger, newExecutor(command), opts...),
				cmd.NewSecretsResolver(command.String("secrets-provider")),
			)

			return worker.Start(ctx)
		},
	}
}

// Worker consumes RunRequested events and executes the referenced
// workflow through the run coordinator.
type Worker struct {
	id          string
	logger      *slog.Logger
	store       persistence.Persistence
	eventBus    eventbus.EventBus
	coordinator *run.Coordinator
	resolver    secrets.Resolver
}

func NewWorker(
	id string,
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	coordinator *run.Coordinator,
	resolver secrets.Resolver,
) *Worker {
	return &Worker{
		id:          id,
		logger:      logger,
		store:       store,
		eventBus:    eventBus,
		coordinator: coordinator,
		resolver:    resolver,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	if err := w.eventBus.Handle(events.RunRequestedEvent, w.handleRunRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker")

	return nil
}

func (w *Worker) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", requested.WorkflowID,
		"run_id", requested.RunID,
		"trigger_source", requested.TriggerSource,
	)
	logger.InfoContext(ctx, "Processing run request")

	wf, err := w.store.WorkflowByID(ctx, requested.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load workflow", "error", err)

		return err
	}

	resolved, err := w.resolveSecrets(ctx, wf)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to resolve secrets", "error", err)

		return err
	}

	result, err := w.coordinator.Execute(ctx, run.Request{
		RunID:    requested.RunID,
		Workflow: wf,
		Vars:     requested.Inputs,
		Secrets:  resolved,
		Metadata: requested.Metadata,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Run execution failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Run finished", "status", result.Status)

	return nil
}

func (w *Worker) resolveSecrets(ctx context.Context, wf *models.Workflow) (map[string]models.Secret, error) {
	names := workflow.SecretNames(wf)
	if len(names) == 0 {
		return nil, nil
	}

	return secrets.ResolveAll(ctx, w.resolver, names)
}
