// Package file implements the artifact store on the local filesystem,
// one directory per run.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dukex/conveyor/pkg/artifacts"
)

// Store implements artifacts.Store under a root directory.
type Store struct {
	root string
}

// NewStore creates the filesystem artifact store.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Put(_ context.Context, runID, name string, content io.Reader) (artifacts.Ref, error) {
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return artifacts.Ref{}, fmt.Errorf("creating artifact directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))

	dst, err := os.Create(path)
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("creating artifact file: %w", err)
	}

	size, err := io.Copy(dst, content)
	if err != nil {
		_ = dst.Close()

		return artifacts.Ref{}, fmt.Errorf("writing artifact %q: %w", name, err)
	}

	if err := dst.Close(); err != nil {
		return artifacts.Ref{}, fmt.Errorf("closing artifact %q: %w", name, err)
	}

	return artifacts.Ref{
		RunID: runID,
		Name:  filepath.Base(name),
		Size:  size,
		URI:   "file://" + path,
	}, nil
}

func (s *Store) Get(_ context.Context, runID, name string) (io.ReadCloser, error) {
	path := filepath.Join(s.root, runID, filepath.Base(name))

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, artifacts.ErrNotFound
	}

	return f, err
}

func (s *Store) List(_ context.Context, runID string) ([]artifacts.Ref, error) {
	dir := filepath.Join(s.root, runID)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("listing artifacts for run %s: %w", runID, err)
	}

	refs := make([]artifacts.Ref, 0, len(entries))

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		refs = append(refs, artifacts.Ref{
			RunID: runID,
			Name:  entry.Name(),
			Size:  info.Size(),
			URI:   "file://" + filepath.Join(dir, entry.Name()),
		})
	}

	return refs, nil
}
