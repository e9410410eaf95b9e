// Package expr evaluates workflow conditional and interpolation
// expressions against an immutable context snapshot. Evaluation is
// pure: the same expression and context always yield the same value.
package expr

import "github.com/dukex/conveyor/pkg/models"

// Status captures the aggregate step/dependency state of the enclosing
// job at evaluation time. It feeds the success()/failure()/cancelled()
// built-in predicates.
type Status struct {
	Failed    bool
	Cancelled bool
}

// Context is the read-only namespace snapshot an expression evaluates
// against. Build one with NewContext and the With* methods; evaluators
// never mutate it.
type Context struct {
	env     map[string]string
	vars    map[string]string
	secrets map[string]models.Secret
	matrix  map[string]any
	needs   map[string]map[string]string
	steps   map[string]map[string]string
	status  Status
}

// NewContext returns an empty context snapshot.
func NewContext() *Context {
	return &Context{
		env:     map[string]string{},
		vars:    map[string]string{},
		secrets: map[string]models.Secret{},
		matrix:  map[string]any{},
		needs:   map[string]map[string]string{},
		steps:   map[string]map[string]string{},
	}
}

// WithEnv returns a copy with the env namespace replaced.
func (c *Context) WithEnv(env map[string]string) *Context {
	out := *c
	out.env = env

	return &out
}

// WithVars returns a copy with the vars namespace replaced.
func (c *Context) WithVars(vars map[string]string) *Context {
	out := *c
	out.vars = vars

	return &out
}

// WithSecrets returns a copy with the secrets namespace replaced.
// Values stay wrapped in models.Secret, so anything rendered from the
// evaluator keeps redact-on-render semantics.
func (c *Context) WithSecrets(secrets map[string]models.Secret) *Context {
	out := *c
	out.secrets = secrets

	return &out
}

// WithMatrix returns a copy with the matrix assignment replaced.
func (c *Context) WithMatrix(matrix map[string]any) *Context {
	out := *c
	out.matrix = matrix

	return &out
}

// WithNeeds returns a copy with the needs namespace replaced. Only
// dependencies that have reached a terminal success-like state may be
// present; the coordinator enforces that visibility rule.
func (c *Context) WithNeeds(needs map[string]map[string]string) *Context {
	out := *c
	out.needs = needs

	return &out
}

// WithSteps returns a copy with the steps output namespace replaced.
func (c *Context) WithSteps(steps map[string]map[string]string) *Context {
	out := *c
	out.steps = steps

	return &out
}

// WithStatus returns a copy with the aggregate status replaced.
func (c *Context) WithStatus(status Status) *Context {
	out := *c
	out.status = status

	return &out
}

// Env returns one env value.
func (c *Context) Env(name string) (string, bool) {
	v, ok := c.env[name]

	return v, ok
}

// StepOutputs returns the captured outputs of one step.
func (c *Context) StepOutputs(stepID string) (map[string]string, bool) {
	outputs, ok := c.steps[stepID]

	return outputs, ok
}
