// Package events defines the lifecycle notifications a run emits while
// it executes: run started and finished, job instances admitted and
// completed, steps finished. Consumers subscribe through the event bus.
package events

import (
	"time"

	"github.com/dukex/conveyor/pkg/models"
)

type EventType string

// Topic carries every run, job instance and step lifecycle event.
const Topic = "conveyor.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunRequestedEvent EventType = "run.requested"
	RunStartedEvent   EventType = "run.started"
	RunFinishedEvent  EventType = "run.finished"

	// Job instance lifecycle events.
	JobInstanceStartedEvent  EventType = "job.instance.started"
	JobInstanceFinishedEvent EventType = "job.instance.finished"
	JobInstanceSkippedEvent  EventType = "job.instance.skipped"

	// Step events.
	StepFinishedEvent EventType = "step.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunRequested is published when a trigger fires and a run should be
// coordinated. The trigger source is "push", "schedule" or "dispatch".
type RunRequested struct {
	BaseEvent

	TriggerSource string            `json:"trigger_source"`
	Ref           string            `json:"ref,omitempty"`
	Inputs        map[string]string `json:"inputs,omitempty"`
}

func (r RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunStarted struct {
	BaseEvent

	InstanceCount int `json:"instance_count"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	Status   models.RunStatus `json:"status"`
	Duration time.Duration    `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type JobInstanceStarted struct {
	BaseEvent

	JobID     string         `json:"job_id"`
	MatrixKey string         `json:"matrix_key,omitempty"`
	Matrix    map[string]any `json:"matrix,omitempty"`
}

func (j JobInstanceStarted) GetType() EventType {
	return JobInstanceStartedEvent
}

type JobInstanceFinished struct {
	BaseEvent

	JobID        string            `json:"job_id"`
	MatrixKey    string            `json:"matrix_key,omitempty"`
	Status       models.JobStatus  `json:"status"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
}

func (j JobInstanceFinished) GetType() EventType {
	return JobInstanceFinishedEvent
}

// JobInstanceSkipped is published when an instance terminates without
// running: a failed dependency, a false condition, or fail-fast.
type JobInstanceSkipped struct {
	BaseEvent

	JobID     string           `json:"job_id"`
	MatrixKey string           `json:"matrix_key,omitempty"`
	Status    models.JobStatus `json:"status"`
	Reason    string           `json:"reason,omitempty"`
}

func (j JobInstanceSkipped) GetType() EventType {
	return JobInstanceSkippedEvent
}

type StepFinished struct {
	BaseEvent

	JobID        string            `json:"job_id"`
	MatrixKey    string            `json:"matrix_key,omitempty"`
	StepID       string            `json:"step_id"`
	Status       models.StepStatus `json:"status"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

func (s StepFinished) GetType() EventType {
	return StepFinishedEvent
}
