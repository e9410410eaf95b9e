// Package artifacts is the blob-store seam steps use to persist files
// beyond the lifetime of their execution environment.
package artifacts

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates no artifact exists under the requested name.
var ErrNotFound = errors.New("artifact not found")

// Ref identifies a stored artifact.
type Ref struct {
	RunID string `json:"run_id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	URI   string `json:"uri"`
}

// Store persists and retrieves named artifacts scoped to one run.
type Store interface {
	Put(ctx context.Context, runID, name string, content io.Reader) (Ref, error)
	Get(ctx context.Context, runID, name string) (io.ReadCloser, error)
	List(ctx context.Context, runID string) ([]Ref, error)
}
