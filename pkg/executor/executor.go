// Package executor runs the ordered steps of one job instance inside an
// environment acquired from the runner, handling per-step conditions,
// output capture, env scoping, and failure propagation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conveyor/pkg/artifacts"
	"github.com/dukex/conveyor/pkg/expr"
	"github.com/dukex/conveyor/pkg/matrix"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/registry"
	"github.com/dukex/conveyor/pkg/runner"
)

// Executor executes job instances. It is safe for concurrent use; each
// Run call operates on its own environment and request state.
type Executor struct {
	logger    *slog.Logger
	runner    runner.Runner
	registry  *registry.Registry
	artifacts artifacts.Store
}

// NewExecutor creates a step executor.
func NewExecutor(logger *slog.Logger, run runner.Runner, reg *registry.Registry, store artifacts.Store) *Executor {
	return &Executor{
		logger:    logger.With("module", "executor"),
		runner:    run,
		registry:  reg,
		artifacts: store,
	}
}

// JobRequest is one job instance to execute. BaseContext carries the
// env, vars, secrets, and needs namespaces the coordinator assembled;
// the executor layers matrix and step outputs on top.
type JobRequest struct {
	RunID       string
	Workflow    *models.Workflow
	Job         *models.Job
	MatrixKey   string
	Matrix      matrix.Assignment
	BaseContext *expr.Context
	Secrets     map[string]models.Secret
}

// Run executes every step of the job instance in declared order and
// returns the aggregated result. A context cancellation takes effect at
// the next step boundary, never mid-step.
func (e *Executor) Run(ctx context.Context, req JobRequest) models.JobResult {
	logger := e.logger.With(
		"run_id", req.RunID,
		"job_id", req.Job.ID,
		"matrix_key", req.MatrixKey,
	)

	result := models.JobResult{
		JobID:     req.Job.ID,
		MatrixKey: req.MatrixKey,
		StartedAt: time.Now().UTC(),
	}

	if req.Job.TimeoutMinutes > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Job.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	redact := newRedactor(req.Secrets)
	baseCtx := req.BaseContext.WithMatrix(map[string]any(req.Matrix))

	env, err := e.acquireEnvironment(ctx, req, baseCtx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire execution environment", "error", err)

		return e.finish(result, models.JobStatusFailed, redact.apply(err.Error()))
	}

	defer func() {
		if releaseErr := env.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logger.ErrorContext(ctx, "Failed to release execution environment", "error", releaseErr)
		}
	}()

	state := &jobState{
		stepOutputs: map[string]map[string]string{},
	}

	for _, step := range req.Job.Steps {
		stepResult := e.runStep(ctx, logger, req, env, state, step, baseCtx, redact)
		result.Steps = append(result.Steps, stepResult)
	}

	status := models.JobStatusSucceeded
	if state.cancelled {
		status = models.JobStatusCancelled
	}

	if state.failed {
		status = models.JobStatusFailed
	}

	outputs, outputErr := e.assembleOutputs(req, state, baseCtx)
	result.Outputs = outputs

	if outputErr != nil && status == models.JobStatusSucceeded {
		logger.ErrorContext(ctx, "Failed to evaluate job outputs", "error", outputErr)

		return e.finish(result, models.JobStatusFailed, redact.apply(outputErr.Error()))
	}

	return e.finish(result, status, "")
}

type jobState struct {
	failed      bool
	cancelled   bool
	stepOutputs map[string]map[string]string
}

// contextFor layers the instance's accumulated step outputs and
// aggregate status onto the base context snapshot.
func (s *jobState) contextFor(base *expr.Context) *expr.Context {
	return base.
		WithSteps(s.stepOutputs).
		WithStatus(expr.Status{Failed: s.failed, Cancelled: s.cancelled})
}

func (e *Executor) runStep(
	ctx context.Context,
	logger *slog.Logger,
	req JobRequest,
	env runner.Environment,
	state *jobState,
	step *models.Step,
	baseCtx *expr.Context,
	redact *redactor,
) models.StepResult {
	stepResult := models.StepResult{
		StepID:    step.ID,
		Name:      step.DisplayName(),
		StartedAt: time.Now().UTC(),
	}

	// Observe cancellation only at step boundaries.
	if ctx.Err() != nil && !state.cancelled {
		state.cancelled = true
	}

	evalCtx := state.contextFor(baseCtx)

	condition := step.If
	if condition == "" {
		condition = "success()"
	}

	shouldRun, err := expr.EvaluateBool(condition, evalCtx)
	if err != nil {
		// An unevaluable condition fails safe: the step is skipped and
		// the reason recorded.
		logger.WarnContext(ctx, "Step condition failed to evaluate, skipping step",
			"step", step.DisplayName(), "error", err)

		stepResult.Status = models.StepStatusSkipped
		stepResult.Error = redact.apply(err.Error())

		return stepResult
	}

	if !shouldRun {
		stepResult.Status = models.StepStatusSkipped
		if state.cancelled {
			stepResult.Status = models.StepStatusCancelled
		}

		return stepResult
	}

	// A step that opted in past cancellation still runs; detach it from
	// the cancelled context so the runner does not kill it immediately.
	runCtx := ctx
	if state.cancelled {
		runCtx = context.WithoutCancel(ctx)
	}

	logger.InfoContext(ctx, "Executing step", "step", step.DisplayName())

	var (
		outputs  map[string]string
		exitCode int
		runErr   error
	)

	if step.IsAction() {
		outputs, runErr = e.runActionStep(runCtx, logger, req, env, step, evalCtx)
	} else {
		outputs, exitCode, runErr = e.runShellStep(runCtx, req, env, step, evalCtx)
	}

	stepResult.ExitCode = exitCode
	stepResult.Outputs = outputs
	stepResult.Duration = time.Since(stepResult.StartedAt)

	if step.ID != "" && len(outputs) > 0 {
		state.stepOutputs[step.ID] = outputs
	}

	if runErr != nil {
		stepResult.Status = models.StepStatusFailed
		stepResult.Error = redact.apply(runErr.Error())

		if !step.ContinueOnError {
			state.failed = true
		}

		logger.ErrorContext(ctx, "Step failed",
			"step", step.DisplayName(),
			"exit_code", exitCode,
			"continue_on_error", step.ContinueOnError,
		)

		return stepResult
	}

	stepResult.Status = models.StepStatusSucceeded

	return stepResult
}

func (e *Executor) runShellStep(
	ctx context.Context,
	req JobRequest,
	env runner.Environment,
	step *models.Step,
	evalCtx *expr.Context,
) (map[string]string, int, error) {
	script, err := expr.Interpolate(step.Run, evalCtx)
	if err != nil {
		return nil, 0, err
	}

	stepEnv, err := interpolateEnv(step.Env, evalCtx)
	if err != nil {
		return nil, 0, err
	}

	result, err := env.Execute(ctx, runner.Command{Script: script, Env: stepEnv})
	if err != nil {
		return nil, result.ExitCode, err
	}

	outputs := parseOutputCommands(result.Stdout)

	if result.ExitCode != 0 {
		return outputs, result.ExitCode, fmt.Errorf("command exited with code %d: %s", result.ExitCode, tail(result.Stderr))
	}

	return outputs, result.ExitCode, nil
}

func (e *Executor) runActionStep(
	ctx context.Context,
	logger *slog.Logger,
	req JobRequest,
	env runner.Environment,
	step *models.Step,
	evalCtx *expr.Context,
) (map[string]string, error) {
	with, err := interpolateWith(step.With, evalCtx)
	if err != nil {
		return nil, err
	}

	action, err := e.registry.CreateAction(step.Uses, with)
	if err != nil {
		return nil, err
	}

	input := protocolInput(req, with, e.artifacts, logger)
	input.WorkDir = env.WorkDir()

	return action.Execute(ctx, input)
}

func (e *Executor) acquireEnvironment(ctx context.Context, req JobRequest, baseCtx *expr.Context) (runner.Environment, error) {
	jobEnv, err := interpolateEnv(mergeEnv(req.Workflow.Env, req.Job.Env), baseCtx)
	if err != nil {
		return nil, err
	}

	return e.runner.Acquire(ctx, runner.Requirements{
		Label: req.Job.RunsOn,
		Env:   jobEnv,
	})
}

// assembleOutputs evaluates the job's declared outputs against the
// completed instance context. A failed evaluation leaves that output
// absent and fails the job.
func (e *Executor) assembleOutputs(req JobRequest, state *jobState, baseCtx *expr.Context) (map[string]string, error) {
	if len(req.Job.Outputs) == 0 {
		return nil, nil
	}

	evalCtx := state.contextFor(baseCtx)
	outputs := make(map[string]string, len(req.Job.Outputs))

	var firstErr error

	for name, expression := range req.Job.Outputs {
		value, err := expr.Interpolate(expression, evalCtx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("evaluating output %q: %w", name, err)
			}

			continue
		}

		outputs[name] = value
	}

	return outputs, firstErr
}

func (e *Executor) finish(result models.JobResult, status models.JobStatus, errMsg string) models.JobResult {
	result.Status = status
	result.Error = errMsg
	result.FinishedAt = time.Now().UTC()

	return result
}
