package models

import "time"

// JobResult is the exported outcome of one job instance.
type JobResult struct {
	JobID      string            `json:"job_id"`
	MatrixKey  string            `json:"matrix_key,omitempty"`
	Status     JobStatus         `json:"status"`
	Steps      []StepResult      `json:"steps,omitempty"`
	Outputs    map[string]string `json:"outputs,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitzero"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
}

// RunResult is the read-only contract surface other tooling consumes:
// every job instance's status, step results and outputs, plus the
// overall run status.
type RunResult struct {
	RunID      string         `json:"run_id"`
	WorkflowID string         `json:"workflow_id"`
	Status     RunStatus      `json:"status"`
	Jobs       []*JobResult   `json:"jobs"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// JobResultsFor returns every instance result for one job id, in
// registration order.
func (r *RunResult) JobResultsFor(jobID string) []*JobResult {
	var out []*JobResult

	for _, jr := range r.Jobs {
		if jr.JobID == jobID {
			out = append(out, jr)
		}
	}

	return out
}
