package models

// Job is a named unit of work composed of ordered steps. A job may be
// fanned out into multiple instances by its strategy matrix.
type Job struct {
	ID             string            `json:"id"                        validate:"required,lowercase"`
	Name           string            `json:"name,omitempty"`
	Needs          []string          `json:"needs,omitempty"`
	If             string            `json:"if,omitempty"`
	RunsOn         string            `json:"runs_on,omitempty"`
	Strategy       *Strategy         `json:"strategy,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Steps          []*Step           `json:"steps"                     validate:"required,min=1,dive"`
	Outputs        map[string]string `json:"outputs,omitempty"`
	TimeoutMinutes int               `json:"timeout_minutes,omitempty" validate:"gte=0"`
}

// Strategy controls matrix fan-out and sibling failure policy.
type Strategy struct {
	Matrix      *Matrix `json:"matrix,omitempty"`
	FailFast    *bool   `json:"fail_fast,omitempty"`
	MaxParallel int     `json:"max_parallel,omitempty" validate:"gte=0"`
}

// FailFastEnabled returns the effective fail-fast policy; absent means true.
func (s *Strategy) FailFastEnabled() bool {
	if s == nil || s.FailFast == nil {
		return true
	}

	return *s.FailFast
}

// ParallelLimit returns the effective max-parallel bound; zero means unbounded.
func (s *Strategy) ParallelLimit() int {
	if s == nil {
		return 0
	}

	return s.MaxParallel
}
