package run

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed indicates the workflow definition was rejected
// before any instance was scheduled.
var ErrValidationFailed = errors.New("workflow validation failed")

// ValidationError carries every issue found while validating a
// workflow. It matches ErrValidationFailed under errors.Is.
type ValidationError struct {
	WorkflowID string
	Issues     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s validation failed: %s", e.WorkflowID, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a validation error for one workflow.
func NewValidationError(workflowID string, issues ...string) *ValidationError {
	return &ValidationError{
		WorkflowID: workflowID,
		Issues:     issues,
	}
}
