package schedule

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/persistence/file"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) all() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func scheduledWorkflow(id, cron string) *models.Workflow {
	return &models.Workflow{
		ID:   id,
		Name: id,
		On: models.Triggers{
			Schedule: []models.ScheduleTrigger{{Cron: cron}},
		},
		Jobs: []*models.Job{
			{ID: "build", Steps: []*models.Step{{Run: "true"}}},
		},
	}
}

func newTestService(t *testing.T, workflows ...*models.Workflow) (*Service, *capturingPublisher) {
	t.Helper()

	store := file.NewPersistence("file://" + t.TempDir())

	ctx := context.Background()
	for _, workflow := range workflows {
		require.NoError(t, store.SaveWorkflow(ctx, workflow))
	}

	publisher := &capturingPublisher{}

	return NewService(slog.Default(), store, publisher), publisher
}

func TestStartRegistersStoredSchedules(t *testing.T) {
	service, _ := newTestService(t,
		scheduledWorkflow("nightly", "0 4 * * *"),
		scheduledWorkflow("hourly", "0 * * * *"),
	)

	ctx := context.Background()
	require.NoError(t, service.Start(ctx))

	defer func() { require.NoError(t, service.Stop(ctx)) }()

	assert.Len(t, service.entries["nightly"], 1)
	assert.Len(t, service.entries["hourly"], 1)
}

func TestStartSkipsInvalidCron(t *testing.T) {
	service, _ := newTestService(t,
		scheduledWorkflow("broken", "not a cron"),
		scheduledWorkflow("nightly", "0 4 * * *"),
	)

	ctx := context.Background()
	require.NoError(t, service.Start(ctx))

	defer func() { require.NoError(t, service.Stop(ctx)) }()

	assert.Empty(t, service.entries["broken"])
	assert.Len(t, service.entries["nightly"], 1)
}

func TestReloadDropsRemovedWorkflows(t *testing.T) {
	service, _ := newTestService(t, scheduledWorkflow("nightly", "0 4 * * *"))

	ctx := context.Background()
	require.NoError(t, service.Start(ctx))

	defer func() { require.NoError(t, service.Stop(ctx)) }()

	require.NoError(t, service.store.DeleteWorkflow(ctx, "nightly"))
	require.NoError(t, service.Reload(ctx))

	assert.Empty(t, service.entries)
}

func TestFirePublishesRunRequested(t *testing.T) {
	service, publisher := newTestService(t)

	service.fire("nightly", "0 4 * * *")

	published := publisher.all()
	require.Len(t, published, 1)

	event, ok := published[0].(events.RunRequested)
	require.True(t, ok)
	assert.Equal(t, "nightly", event.WorkflowID)
	assert.Equal(t, "schedule", event.TriggerSource)
	assert.Equal(t, "0 4 * * *", event.Metadata["cron"])
	assert.NotEmpty(t, event.ID)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(scheduledWorkflow("ok", "*/5 * * * *")))

	err := Validate(scheduledWorkflow("bad", "99 99 * * *"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}
