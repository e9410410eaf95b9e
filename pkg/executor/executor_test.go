package executor

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/expr"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/registry"
	"github.com/dukex/conveyor/pkg/runner/local"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()

	logger := slog.Default()

	return NewExecutor(logger, local.NewRunner(logger, ""), registry.NewRegistry(logger), nil)
}

func runJob(t *testing.T, job *models.Job) models.JobResult {
	t.Helper()

	exec := newTestExecutor(t)

	return exec.Run(context.Background(), JobRequest{
		RunID:       "run-test",
		Workflow:    &models.Workflow{ID: "ci", Name: "CI", Jobs: []*models.Job{job}},
		Job:         job,
		BaseContext: expr.NewContext(),
	})
}

func TestRunStepsInOrderAndCollectOutputs(t *testing.T) {
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "version", Run: `echo "::set-output name=version::1.2.3"`},
			{ID: "stamp", Run: `echo "::set-output name=tag::v${{ steps.version.outputs.version }}"`},
		},
		Outputs: map[string]string{
			"tag": "${{ steps.stamp.outputs.tag }}",
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusSucceeded, result.Status)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[0].Status)
	assert.Equal(t, "v1.2.3", result.Outputs["tag"])
}

func TestFailedStepSkipsRemainingSteps(t *testing.T) {
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "boom", Run: "exit 7"},
			{ID: "after", Run: "echo unreachable"},
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusFailed, result.Status)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, models.StepStatusFailed, result.Steps[0].Status)
	assert.Equal(t, 7, result.Steps[0].ExitCode)
	assert.Equal(t, models.StepStatusSkipped, result.Steps[1].Status)
}

func TestFailureConditionRunsAfterFailedStep(t *testing.T) {
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "boom", Run: "exit 1"},
			{ID: "report", If: "failure()", Run: `echo "::set-output name=reported::yes"`},
			{ID: "always", If: "always()", Run: `echo "::set-output name=ran::yes"`},
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusFailed, result.Status)
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[1].Status)
	assert.Equal(t, "yes", result.Steps[1].Outputs["reported"])
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[2].Status)
}

func TestContinueOnErrorKeepsJobGreen(t *testing.T) {
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "flaky", Run: "exit 1", ContinueOnError: true},
			{ID: "after", Run: "echo still running"},
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusSucceeded, result.Status)
	assert.Equal(t, models.StepStatusFailed, result.Steps[0].Status)
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[1].Status)
}

func TestStepConditionEvalErrorSkipsStepOnly(t *testing.T) {
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "broken", If: "env.UNSET_FLAG == 'on'", Run: "echo nope"},
			{ID: "fine", Run: "echo ok"},
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusSucceeded, result.Status)
	assert.Equal(t, models.StepStatusSkipped, result.Steps[0].Status)
	assert.NotEmpty(t, result.Steps[0].Error)
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[1].Status)
}

func TestMatrixValuesInterpolateIntoScripts(t *testing.T) {
	exec := newTestExecutor(t)
	job := &models.Job{
		ID: "test",
		Steps: []*models.Step{
			{ID: "echo", Run: `echo "::set-output name=target::${{ matrix.os }}"`},
		},
	}

	result := exec.Run(context.Background(), JobRequest{
		RunID:       "run-test",
		Workflow:    &models.Workflow{ID: "ci", Name: "CI", Jobs: []*models.Job{job}},
		Job:         job,
		MatrixKey:   "os=linux",
		Matrix:      map[string]any{"os": "linux"},
		BaseContext: expr.NewContext(),
	})

	assert.Equal(t, models.JobStatusSucceeded, result.Status)
	assert.Equal(t, "linux", result.Steps[0].Outputs["target"])
}

func TestJobEnvReachesSteps(t *testing.T) {
	job := &models.Job{
		ID:  "build",
		Env: map[string]string{"GREETING": "hello"},
		Steps: []*models.Step{
			{ID: "greet", Run: `echo "::set-output name=msg::$GREETING"`},
		},
	}

	result := runJob(t, job)

	assert.Equal(t, models.JobStatusSucceeded, result.Status)
	assert.Equal(t, "hello", result.Steps[0].Outputs["msg"])
}

func TestSecretRedactionInStepError(t *testing.T) {
	exec := newTestExecutor(t)
	secrets := map[string]models.Secret{"token": models.NewSecret("hunter2")}
	job := &models.Job{
		ID: "leak",
		Steps: []*models.Step{
			{ID: "boom", Run: `echo "leaked ${{ secrets.token }}" >&2; exit 1`},
		},
	}

	result := exec.Run(context.Background(), JobRequest{
		RunID:       "run-test",
		Workflow:    &models.Workflow{ID: "ci", Name: "CI", Jobs: []*models.Job{job}},
		Job:         job,
		BaseContext: expr.NewContext().WithSecrets(secrets),
		Secrets:     secrets,
	})

	assert.Equal(t, models.JobStatusFailed, result.Status)
	assert.NotContains(t, result.Steps[0].Error, "hunter2")
	assert.Contains(t, result.Steps[0].Error, models.RedactedPlaceholder)
}

func TestCancelledContextCancelsPendingSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := newTestExecutor(t)
	job := &models.Job{
		ID: "build",
		Steps: []*models.Step{
			{ID: "never", Run: "echo nope"},
			{ID: "cleanup", If: "always()", Run: `echo "::set-output name=done::yes"`},
		},
	}

	result := exec.Run(ctx, JobRequest{
		RunID:       "run-test",
		Workflow:    &models.Workflow{ID: "ci", Name: "CI", Jobs: []*models.Job{job}},
		Job:         job,
		BaseContext: expr.NewContext(),
	})

	assert.Equal(t, models.JobStatusCancelled, result.Status)
	assert.Equal(t, models.StepStatusCancelled, result.Steps[0].Status)

	// always() opts past cancellation and still runs.
	assert.Equal(t, models.StepStatusSucceeded, result.Steps[1].Status)
	assert.Equal(t, "yes", result.Steps[1].Outputs["done"])
}

func TestParseOutputCommands(t *testing.T) {
	stdout := "building...\n::set-output name=version::1.2.3\nnoise\n::set-output name=arch::arm64\n"

	outputs := parseOutputCommands(stdout)
	assert.Equal(t, map[string]string{"version": "1.2.3", "arch": "arm64"}, outputs)
}
