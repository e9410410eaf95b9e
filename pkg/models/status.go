package models

// JobStatus represents the lifecycle state of a job instance.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"   // Registered, dependencies not yet inspected
	JobStatusBlocked   JobStatus = "blocked"   // Waiting on at least one needed job
	JobStatusEligible  JobStatus = "eligible"  // Dependencies satisfied, waiting for a slot
	JobStatusRunning   JobStatus = "running"   // Steps executing
	JobStatusSucceeded JobStatus = "succeeded" // Terminal
	JobStatusFailed    JobStatus = "failed"    // Terminal
	JobStatusSkipped   JobStatus = "skipped"   // Terminal, condition or dependency ruled it out
	JobStatusCancelled JobStatus = "cancelled" // Terminal, fail-fast or run abort
)

// Terminal reports whether the status is final. Terminal statuses never
// transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// SuccessLike reports whether a dependent job may treat this status as a
// satisfied dependency under the default policy. Skipped counts: a job
// skipped by its own condition does not poison its dependents.
func (s JobStatus) SuccessLike() bool {
	return s == JobStatusSucceeded || s == JobStatusSkipped
}

// StepStatus represents the outcome of a single step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCancelled StepStatus = "cancelled"
)

// RunStatus represents the overall outcome of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)
