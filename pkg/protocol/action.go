// Package protocol defines the contracts for pluggable step actions.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/conveyor/pkg/artifacts"
)

// ActionInput carries everything an action may use during execution.
// With holds the step's interpolated parameters.
type ActionInput struct {
	RunID     string
	JobID     string
	MatrixKey string
	With      map[string]any
	WorkDir   string
	Artifacts artifacts.Store
	Logger    *slog.Logger
}

// Action is one executable `uses:` step implementation. The returned
// map becomes the step's output namespace.
type Action interface {
	Execute(ctx context.Context, input ActionInput) (map[string]string, error)
}

// ActionFactory creates action instances and provides metadata about
// the action type.
type ActionFactory interface {
	// ID returns the `uses:` reference that selects this action.
	ID() string

	// Name returns the human-readable name for this action.
	Name() string

	// Description returns a description of what this action does.
	Description() string

	// Schema returns the JSON schema for the action's `with:` block.
	Schema() map[string]any

	// Create builds a new action instance.
	Create() (Action, error)
}
