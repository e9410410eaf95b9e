// Package registry holds the catalog of step actions available to
// `uses:` steps.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/dukex/conveyor/pkg/protocol"
)

// Registry maps action ids to their factories.
type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger.With("module", "registry"),
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds an action factory under its id.
func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

// CreateAction builds an action instance after validating the step's
// `with:` block against the factory schema.
func (r *Registry) CreateAction(actionID string, with map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionID]
	if !ok {
		return nil, fmt.Errorf("action %q not registered", actionID)
	}

	if err := validateWith(factory, with); err != nil {
		return nil, fmt.Errorf("invalid configuration for action %q: %w", actionID, err)
	}

	return factory.Create()
}

// ActionIDs returns the registered action ids.
func (r *Registry) ActionIDs() []string {
	ids := make([]string, 0, len(r.actionFactories))
	for id := range r.actionFactories {
		ids = append(ids, id)
	}

	return ids
}
