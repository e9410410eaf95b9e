package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/persistence"
)

// RunRepository handles run result database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run result repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// Save upserts a run result.
func (r *RunRepository) Save(ctx context.Context, result *models.RunResult) error {
	jobs, err := json.Marshal(result.Jobs)
	if err != nil {
		return persistence.NewRunError("Save", result.RunID, err)
	}

	var metadata []byte

	if result.Metadata != nil {
		metadata, err = json.Marshal(result.Metadata)
		if err != nil {
			return persistence.NewRunError("Save", result.RunID, err)
		}
	}

	query := `
		INSERT INTO runs (run_id, workflow_id, status, jobs, metadata, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			jobs = EXCLUDED.jobs,
			metadata = EXCLUDED.metadata,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		result.RunID,
		result.WorkflowID,
		string(result.Status),
		jobs,
		metadata,
		result.StartedAt,
		nullableTime(result.FinishedAt),
	)
	if err != nil {
		return persistence.NewRunError("Save", result.RunID, err)
	}

	return nil
}

// GetByID returns one run result, or ErrRunNotFound.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*models.RunResult, error) {
	query := `
		SELECT run_id, workflow_id, status, jobs, metadata, started_at, finished_at
		FROM runs
		WHERE run_id = $1
	`

	result, err := r.scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", runID, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", runID, err)
	}

	return result, nil
}

// GetByWorkflow returns every run result for one workflow, most recent
// first.
func (r *RunRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.RunResult, error) {
	query := `
		SELECT run_id, workflow_id, status, jobs, metadata, started_at, finished_at
		FROM runs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewRunError("GetByWorkflow", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	results := make([]*models.RunResult, 0)

	for rows.Next() {
		result, err := r.scanRun(rows)
		if err != nil {
			return nil, persistence.NewRunError("GetByWorkflow", "", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewRunError("GetByWorkflow", "", err)
	}

	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scanRun(row rowScanner) (*models.RunResult, error) {
	var (
		result     models.RunResult
		status     string
		jobs       []byte
		metadata   []byte
		finishedAt sql.NullTime
	)

	err := row.Scan(&result.RunID, &result.WorkflowID, &status, &jobs, &metadata, &result.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	result.Status = models.RunStatus(status)

	err = json.Unmarshal(jobs, &result.Jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job results: %w", err)
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &result.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to decode run metadata: %w", err)
		}
	}

	if finishedAt.Valid {
		result.FinishedAt = finishedAt.Time.UTC()
	}

	result.StartedAt = result.StartedAt.UTC()

	return &result, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}
