package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowErrorWrapsSentinel(t *testing.T) {
	err := NewWorkflowError("GetByID", "ci", ErrWorkflowNotFound)

	assert.True(t, IsWorkflowNotFound(err))
	assert.True(t, errors.Is(err, ErrWorkflowNotFound))
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "ci")
}

func TestRunErrorWrapsSentinel(t *testing.T) {
	err := NewRunError("GetByID", "run-404", ErrRunNotFound)

	assert.True(t, IsRunNotFound(err))
	assert.False(t, IsWorkflowNotFound(err))
	assert.Contains(t, err.Error(), "run-404")
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewRunError("Save", "run-1", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}
