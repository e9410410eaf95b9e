package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/channels/gochannel"
	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishReachesRegisteredHandler(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.JobInstanceFinished, 1)

	err := bus.Handle(events.JobInstanceFinishedEvent, func(_ context.Context, event any) error {
		finished, ok := event.(*events.JobInstanceFinished)
		require.True(t, ok)

		received <- finished

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.JobInstanceFinished{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.JobInstanceFinishedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "ci",
			RunID:      "run-1",
		},
		JobID:     "build",
		MatrixKey: "go=1.24",
		Status:    models.JobStatusSucceeded,
		Outputs:   map[string]string{"version": "1.2.3"},
	}
	require.NoError(t, bus.Publish(ctx, "ci", sent))

	select {
	case finished := <-received:
		assert.Equal(t, "build", finished.JobID)
		assert.Equal(t, "go=1.24", finished.MatrixKey)
		assert.Equal(t, models.JobStatusSucceeded, finished.Status)
		assert.Equal(t, "1.2.3", finished.Outputs["version"])
		assert.Equal(t, "run-1", finished.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestUnhandledEventTypesAreIgnored(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 1)

	err := bus.Handle(events.RunFinishedEvent, func(_ context.Context, _ any) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	started := events.RunStarted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.RunStartedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "ci",
			RunID:      "run-1",
		},
		InstanceCount: 2,
	}
	require.NoError(t, bus.Publish(ctx, "ci", started))

	select {
	case <-received:
		t.Fatal("handler for a different event type was invoked")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
