package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDefinition = `{
	"name": "CI",
	"on": {
		"push": {"branches": ["main"]},
		"schedule": [{"cron": "0 4 * * *"}]
	},
	"env": {"CI": "true"},
	"jobs": [
		{
			"id": "build",
			"steps": [{"id": "compile", "run": "make build"}],
			"outputs": {"artifact": "${{ steps.compile.outputs.artifact }}"}
		},
		{
			"id": "test",
			"needs": ["build"],
			"strategy": {
				"max_parallel": 2,
				"matrix": {"axes": [{"name": "go", "values": ["1.23", "1.24"]}]}
			},
			"steps": [{"run": "make test"}]
		}
	]
}`

func TestParseValidDefinition(t *testing.T) {
	workflow, err := NewLoader().Parse([]byte(validDefinition))
	require.NoError(t, err)

	assert.Equal(t, "CI", workflow.Name)
	require.Len(t, workflow.Jobs, 2)
	assert.Equal(t, []string{"build"}, workflow.Jobs[1].Needs)
	assert.Equal(t, 2, workflow.Jobs[1].Strategy.MaxParallel)
	require.Len(t, workflow.On.Schedule, 1)
	assert.Equal(t, "0 4 * * *", workflow.On.Schedule[0].Cron)
}

func TestParseRejectsMissingJobs(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`{"name": "CI"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs")
}

func TestParseRejectsJobWithoutSteps(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`{"name": "CI", "jobs": [{"id": "build", "steps": []}]}`))
	require.Error(t, err)
}

func TestParseRejectsWrongShape(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`{"name": "CI", "jobs": "not-an-array"}`))
	require.Error(t, err)
}

func TestLoadDefaultsIDFromFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly.json")
	require.NoError(t, os.WriteFile(path, []byte(validDefinition), 0o644))

	workflow, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", workflow.ID)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(validDefinition), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(validDefinition), 0o644))

	workflows, err := NewLoader().LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}
