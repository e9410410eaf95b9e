package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/persistence"
)

// RunRepository stores finished run results as JSON files under
// <root>/runs/<run_id>.json.
type RunRepository struct {
	root string
}

// NewRunRepository creates a new run result repository.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (rr *RunRepository) dir() string {
	return filepath.Join(rr.root, "runs")
}

func (rr *RunRepository) path(runID string) string {
	return filepath.Join(rr.dir(), runID+".json")
}

// Save writes the run result, replacing any previous record for the
// same run id.
func (rr *RunRepository) Save(_ context.Context, result *models.RunResult) error {
	err := os.MkdirAll(rr.dir(), dirPerm)
	if err != nil {
		return persistence.NewRunError("Save", result.RunID, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return persistence.NewRunError("Save", result.RunID, err)
	}

	err = os.WriteFile(rr.path(result.RunID), data, filePerm)
	if err != nil {
		return persistence.NewRunError("Save", result.RunID, err)
	}

	return nil
}

// GetByID loads one run result. Returns ErrRunNotFound when no record
// exists.
func (rr *RunRepository) GetByID(_ context.Context, runID string) (*models.RunResult, error) {
	data, err := os.ReadFile(rr.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", runID, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", runID, err)
	}

	var result models.RunResult

	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, persistence.NewRunError("GetByID", runID, fmt.Errorf("failed to decode run result: %w", err))
	}

	return &result, nil
}

// GetByWorkflow returns every run result for one workflow, most recent
// first.
func (rr *RunRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.RunResult, error) {
	entries, err := fs.Glob(os.DirFS(rr.dir()), "*.json")
	if err != nil {
		return nil, persistence.NewRunError("GetByWorkflow", "", err)
	}

	results := make([]*models.RunResult, 0)

	for _, entry := range entries {
		runID := entry[:len(entry)-len(".json")]

		result, err := rr.GetByID(ctx, runID)
		if err != nil {
			return nil, err
		}

		if result.WorkflowID != workflowID {
			continue
		}

		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})

	return results, nil
}
