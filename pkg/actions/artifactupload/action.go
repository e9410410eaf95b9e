// Package artifactupload provides the built-in artifact/upload action,
// which persists files from the job's working directory to the
// configured artifact store.
package artifactupload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukex/conveyor/pkg/protocol"
)

// ErrNoStore indicates the engine was started without an artifact
// store but a step tried to upload.
var ErrNoStore = errors.New("no artifact store configured")

// NewActionFactory creates the artifact/upload action factory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "artifact/upload"
}

func (*ActionFactory) Name() string {
	return "Upload Artifact"
}

func (*ActionFactory) Description() string {
	return "Store a file from the job working directory as a run artifact"
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Artifact name",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File path relative to the job working directory",
			},
		},
		"required": []string{"name", "path"},
	}
}

func (*ActionFactory) Create() (protocol.Action, error) {
	return &Action{}, nil
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, input protocol.ActionInput) (map[string]string, error) {
	if input.Artifacts == nil {
		return nil, ErrNoStore
	}

	name, _ := input.With["name"].(string)
	path, _ := input.With["path"].(string)

	if !filepath.IsAbs(path) {
		path = filepath.Join(input.WorkDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact source %q: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	ref, err := input.Artifacts.Put(ctx, input.RunID, name, f)
	if err != nil {
		return nil, fmt.Errorf("storing artifact %q: %w", name, err)
	}

	input.Logger.InfoContext(ctx, "Stored artifact", "name", ref.Name, "size", ref.Size, "uri", ref.URI)

	return map[string]string{
		"uri":  ref.URI,
		"size": fmt.Sprintf("%d", ref.Size),
	}, nil
}
