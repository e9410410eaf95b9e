// Package models defines the core domain models for CI workflow orchestration.
package models

// Workflow is the validated, immutable definition of one automation run:
// an ordered set of jobs plus workflow-level triggers and environment.
// The concrete configuration grammar is a front-end concern; by the time
// a Workflow reaches the engine it has already been validated.
type Workflow struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"              validate:"required,min=1"`
	On       Triggers          `json:"on"`
	Env      map[string]string `json:"env,omitempty"`
	Jobs     []*Job            `json:"jobs"              validate:"required,min=1,dive"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// JobByID returns the job with the given id, if declared.
func (w *Workflow) JobByID(id string) (*Job, bool) {
	for _, job := range w.Jobs {
		if job.ID == id {
			return job, true
		}
	}

	return nil, false
}

// Triggers describes when a workflow fires. The engine itself only runs
// already-dispatched workflows; schedule entries are consumed by the
// schedule trigger service.
type Triggers struct {
	Push             *PushTrigger      `json:"push,omitempty"`
	Schedule         []ScheduleTrigger `json:"schedule,omitempty"`
	WorkflowDispatch *DispatchTrigger  `json:"workflow_dispatch,omitempty"`
}

// PushTrigger fires on branch or tag pushes.
type PushTrigger struct {
	Branches []string `json:"branches,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ScheduleTrigger fires on a cron schedule (standard 5-field format).
type ScheduleTrigger struct {
	Cron string `json:"cron" validate:"required"`
}

// DispatchTrigger fires on explicit manual dispatch with optional inputs.
type DispatchTrigger struct {
	Inputs map[string]DispatchInput `json:"inputs,omitempty"`
}

// DispatchInput declares one manual-dispatch input.
type DispatchInput struct {
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     string `json:"default,omitempty"`
}
