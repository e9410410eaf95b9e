package matrix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/models"
)

func axes(pairs ...models.MatrixAxis) *models.Matrix {
	return &models.Matrix{Axes: pairs}
}

func TestExpandNilMatrixYieldsSingleEmptyAssignment(t *testing.T) {
	assignments, err := Expand(nil)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Empty(t, assignments[0])
	assert.Equal(t, "", assignments[0].Key())
}

func TestExpandCartesianInDeclarationOrder(t *testing.T) {
	spec := axes(
		models.MatrixAxis{Name: "os", Values: []any{"linux", "darwin"}},
		models.MatrixAxis{Name: "go", Values: []any{"1.23", "1.24"}},
	)

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	keys := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		keys = append(keys, assignment.Key())
	}

	assert.Equal(t, []string{
		"go=1.23,os=linux",
		"go=1.24,os=linux",
		"go=1.23,os=darwin",
		"go=1.24,os=darwin",
	}, keys)
}

func TestExpandIncludeMergesMetadataOntoMatchingRows(t *testing.T) {
	spec := axes(models.MatrixAxis{Name: "os", Values: []any{"linux", "windows"}})
	spec.Include = []map[string]any{
		{"os": "linux", "runner": "self-hosted"},
	}

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	assert.Equal(t, "self-hosted", assignments[0]["runner"])
	_, hasRunner := assignments[1]["runner"]
	assert.False(t, hasRunner)
}

func TestExpandIncludeWithNewAxisKeyAppends(t *testing.T) {
	// An include entry carrying a key outside the declared axes is a new
	// combination, never a merge.
	spec := axes(models.MatrixAxis{Name: "os", Values: []any{"ubuntu", "windows"}})
	spec.Include = []map[string]any{
		{"os": "ubuntu", "node": "20.x"},
	}

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	appended := assignments[2]
	assert.Equal(t, "ubuntu", appended["os"])
	assert.Equal(t, "20.x", appended["node"])
}

func TestExpandExcludeRemovesMatches(t *testing.T) {
	spec := axes(
		models.MatrixAxis{Name: "os", Values: []any{"linux", "darwin"}},
		models.MatrixAxis{Name: "go", Values: []any{"1.23", "1.24"}},
	)
	spec.Exclude = []map[string]any{
		{"os": "darwin", "go": "1.23"},
	}

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	for _, assignment := range assignments {
		assert.NotEqual(t, "go=1.23,os=darwin", assignment.Key())
	}
}

func TestExpandPartialExcludeIsWildcard(t *testing.T) {
	spec := axes(
		models.MatrixAxis{Name: "os", Values: []any{"linux", "darwin"}},
		models.MatrixAxis{Name: "go", Values: []any{"1.23", "1.24"}},
	)
	spec.Exclude = []map[string]any{
		{"os": "darwin"},
	}

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	for _, assignment := range assignments {
		assert.Equal(t, "linux", assignment["os"])
	}
}

func TestExpandExcludeUnknownAxisFails(t *testing.T) {
	spec := axes(models.MatrixAxis{Name: "os", Values: []any{"linux"}})
	spec.Exclude = []map[string]any{
		{"arch": "arm64"},
	}

	_, err := Expand(spec)
	require.Error(t, err)

	var unknownAxis *ErrUnknownAxis

	require.True(t, errors.As(err, &unknownAxis))
	assert.Equal(t, "exclude", unknownAxis.Rule)
	assert.Equal(t, "arch", unknownAxis.Axis)
}

func TestExpandExcludeAppliesAfterInclude(t *testing.T) {
	spec := axes(models.MatrixAxis{Name: "os", Values: []any{"linux", "darwin"}})
	spec.Include = []map[string]any{
		{"os": "darwin", "runner": "macstadium"},
	}
	spec.Exclude = []map[string]any{
		{"os": "darwin"},
	}

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "linux", assignments[0]["os"])
}

func TestAssignmentKeyIsOrderIndependent(t *testing.T) {
	a := Assignment{"go": "1.24", "os": "linux"}
	b := Assignment{"os": "linux", "go": "1.24"}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "go=1.24,os=linux", a.Key())
}

func TestNumericAxisValuesKeepIdentity(t *testing.T) {
	spec := axes(models.MatrixAxis{Name: "node", Values: []any{18, 20}})

	assignments, err := Expand(spec)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "node=18", assignments[0].Key())
}
