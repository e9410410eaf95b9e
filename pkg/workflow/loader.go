// Package workflow loads and validates workflow definition files. The
// on-disk format is JSON; structural validation runs against a JSON
// schema before field-level validation, so authors get shape errors
// with paths instead of decoding panics.
package workflow

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/conveyor/pkg/models"
)

// Loader parses workflow definition files.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a workflow loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// Load reads one workflow definition file. The workflow id defaults to
// the file name without extension.
func (l *Loader) Load(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	workflow, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workflow file %s: %w", path, err)
	}

	if workflow.ID == "" {
		base := filepath.Base(path)
		workflow.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return workflow, nil
}

// LoadDir loads every *.json workflow in a directory.
func (l *Loader) LoadDir(dir string) ([]*models.Workflow, error) {
	entries, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files in %s: %w", dir, err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		workflow, err := l.Load(filepath.Join(dir, entry))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// Parse decodes and validates one workflow definition.
func (l *Loader) Parse(data []byte) (*models.Workflow, error) {
	err := validateShape(data)
	if err != nil {
		return nil, err
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}

	err = l.validate.Struct(&workflow)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &workflow, nil
}

// validateShape checks the raw document against the workflow schema.
func validateShape(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(definitionSchema()),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validating workflow definition: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("invalid workflow definition: %s", strings.Join(messages, "; "))
}
