// Package schedule runs the cron trigger service. It watches the workflow
// store for definitions with schedule triggers and publishes a RunRequested
// event each time one of their cron expressions fires. Actual run execution
// is left to whoever consumes the event.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/persistence"
)

// Service owns one cron runner and keeps its entries in sync with the
// schedule triggers declared by stored workflows.
type Service struct {
	logger   *slog.Logger
	store    persistence.Persistence
	bus      eventbus.EventPublisher
	workerID string

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string][]cron.EntryID
	started bool
}

func NewService(logger *slog.Logger, store persistence.Persistence, bus eventbus.EventPublisher) *Service {
	return &Service{
		logger:   logger.With("module", "schedule_trigger"),
		store:    store,
		bus:      bus,
		workerID: "trigger-" + uuid.New().String()[:8],
		entries:  make(map[string][]cron.EntryID),
	}
}

// Start loads the current workflows, registers their schedules and starts
// the cron runner. It returns once the runner is going; entries fire on
// their own goroutines.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	workflows, err := s.store.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflows for scheduling: %w", err)
	}

	count := 0

	for _, workflow := range workflows {
		registered, err := s.registerLocked(workflow)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to register workflow schedules",
				"workflow_id", workflow.ID, "error", err)

			continue
		}

		count += registered
	}

	s.cron.Start()
	s.started = true

	s.logger.InfoContext(ctx, "Schedule trigger service started",
		"workflow_count", len(workflows), "schedule_count", count)

	return nil
}

// Reload re-reads the store and replaces every registered entry. Workflows
// removed from the store stop firing; new schedules start firing on their
// next due time.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	workflows, err := s.store.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload workflows for scheduling: %w", err)
	}

	for _, ids := range s.entries {
		for _, id := range ids {
			s.cron.Remove(id)
		}
	}

	s.entries = make(map[string][]cron.EntryID)
	count := 0

	for _, workflow := range workflows {
		registered, err := s.registerLocked(workflow)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to register workflow schedules",
				"workflow_id", workflow.ID, "error", err)

			continue
		}

		count += registered
	}

	s.logger.InfoContext(ctx, "Schedule trigger service reloaded", "schedule_count", count)

	return nil
}

// Stop halts the cron runner and waits for in-flight entry callbacks.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started = false
	s.logger.InfoContext(ctx, "Schedule trigger service stopped")

	return nil
}

// Validate checks every schedule expression in a workflow without
// registering anything. Used by the API before accepting a definition.
func Validate(workflow *models.Workflow) error {
	for _, entry := range workflow.On.Schedule {
		if _, err := cron.ParseStandard(entry.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", entry.Cron, err)
		}
	}

	return nil
}

func (s *Service) registerLocked(workflow *models.Workflow) (int, error) {
	if len(workflow.On.Schedule) == 0 {
		return 0, nil
	}

	ids := make([]cron.EntryID, 0, len(workflow.On.Schedule))

	for _, entry := range workflow.On.Schedule {
		workflowID := workflow.ID
		cronExpr := entry.Cron

		id, err := s.cron.AddFunc(cronExpr, func() {
			s.fire(workflowID, cronExpr)
		})
		if err != nil {
			for _, added := range ids {
				s.cron.Remove(added)
			}

			return 0, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
		}

		ids = append(ids, id)

		s.logger.Info("Registered schedule",
			"workflow_id", workflowID, "cron", cronExpr, "entry_id", id)
	}

	s.entries[workflow.ID] = ids

	return len(ids), nil
}

func (s *Service) fire(workflowID, cronExpr string) {
	ctx := context.Background()

	event := events.RunRequested{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.RunRequestedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflowID,
			WorkerID:   s.workerID,
			Metadata:   map[string]any{"cron": cronExpr},
		},
		TriggerSource: "schedule",
	}

	s.logger.InfoContext(ctx, "Schedule fired", "workflow_id", workflowID, "cron", cronExpr)

	if err := s.bus.Publish(ctx, workflowID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish run request",
			"workflow_id", workflowID, "error", err)
	}
}
