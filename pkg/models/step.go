package models

import "time"

// Step is the smallest executable unit within a job: either a shell
// command (Run) or a reference to a registered action (Uses). Exactly
// one of the two must be set.
type Step struct {
	ID              string            `json:"id,omitempty"   validate:"omitempty,lowercase"`
	Name            string            `json:"name,omitempty"`
	If              string            `json:"if,omitempty"`
	Run             string            `json:"run,omitempty"`
	Uses            string            `json:"uses,omitempty"`
	With            map[string]any    `json:"with,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	ContinueOnError bool              `json:"continue_on_error,omitempty"`
}

// IsAction reports whether the step invokes a registered action rather
// than a shell command.
func (s *Step) IsAction() bool {
	return s.Uses != ""
}

// DisplayName returns the best human label for the step.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}

	if s.ID != "" {
		return s.ID
	}

	if s.Uses != "" {
		return s.Uses
	}

	return s.Run
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	StepID    string            `json:"step_id,omitempty"`
	Name      string            `json:"name"`
	Status    StepStatus        `json:"status"`
	ExitCode  int               `json:"exit_code"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Error     string            `json:"error,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}
