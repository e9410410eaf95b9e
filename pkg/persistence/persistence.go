// Package persistence provides the storage abstraction for workflow
// definitions and finished run results.
package persistence

import (
	"context"

	"github.com/dukex/conveyor/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveRunResult(ctx context.Context, result *models.RunResult) error
	RunResultByID(ctx context.Context, runID string) (*models.RunResult, error)
	RunResultsByWorkflow(ctx context.Context, workflowID string) ([]*models.RunResult, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
