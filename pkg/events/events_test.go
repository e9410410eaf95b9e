package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/models"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, RunRequestedEvent, RunRequested{}.GetType())
	assert.Equal(t, RunStartedEvent, RunStarted{}.GetType())
	assert.Equal(t, RunFinishedEvent, RunFinished{}.GetType())
	assert.Equal(t, JobInstanceStartedEvent, JobInstanceStarted{}.GetType())
	assert.Equal(t, JobInstanceFinishedEvent, JobInstanceFinished{}.GetType())
	assert.Equal(t, JobInstanceSkippedEvent, JobInstanceSkipped{}.GetType())
	assert.Equal(t, StepFinishedEvent, StepFinished{}.GetType())
}

func TestJobInstanceFinishedSerialization(t *testing.T) {
	event := JobInstanceFinished{
		BaseEvent: BaseEvent{
			ID:         "evt-1",
			Type:       JobInstanceFinishedEvent,
			Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			WorkflowID: "ci",
			RunID:      "run-1",
		},
		JobID:      "test",
		MatrixKey:  "os=linux",
		Status:     models.JobStatusSucceeded,
		Outputs:    map[string]string{"coverage": "93"},
		DurationMs: 1500,
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded JobInstanceFinished

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, event, decoded)
}
