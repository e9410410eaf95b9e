// Package file provides file-based persistence for workflow definitions
// and run results, one JSON document per record.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/conveyor/pkg/models"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	runRepo      *RunRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A file:// prefix is stripped if present.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		runRepo:      NewRunRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file persistence there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) SaveRunResult(ctx context.Context, result *models.RunResult) error {
	return fp.runRepo.Save(ctx, result)
}

func (fp *Persistence) RunResultByID(ctx context.Context, runID string) (*models.RunResult, error) {
	return fp.runRepo.GetByID(ctx, runID)
}

func (fp *Persistence) RunResultsByWorkflow(ctx context.Context, workflowID string) ([]*models.RunResult, error) {
	return fp.runRepo.GetByWorkflow(ctx, workflowID)
}
