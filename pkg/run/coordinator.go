// Package run coordinates a full workflow run: validation, matrix
// expansion, dependency ordering, instance scheduling, and result
// assembly.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/executor"
	"github.com/dukex/conveyor/pkg/expr"
	"github.com/dukex/conveyor/pkg/graph"
	"github.com/dukex/conveyor/pkg/matrix"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/otelhelper"
	"github.com/dukex/conveyor/pkg/persistence"
	"github.com/dukex/conveyor/pkg/scheduler"
)

// defaultCondition gates a job with no explicit condition.
const defaultCondition = "success()"

// Option configures a coordinator.
type Option func(*Coordinator)

// WithEventBus publishes run lifecycle events to the given publisher.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(c *Coordinator) {
		c.eventBus = bus
	}
}

// WithTracer records a span per run and per job instance.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithPersistence saves the run result when the run starts and when it
// finishes.
func WithPersistence(store persistence.Persistence) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithMaxParallel bounds concurrently running instances across the
// whole run, on top of each job's own max-parallel.
func WithMaxParallel(n int) Option {
	return func(c *Coordinator) {
		c.maxParallel = n
	}
}

// Coordinator drives workflow runs. It is safe for concurrent use; each
// Execute call owns its scheduler and result board.
type Coordinator struct {
	logger      *slog.Logger
	baseLogger  *slog.Logger
	executor    *executor.Executor
	validate    *validator.Validate
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	store       persistence.Persistence
	maxParallel int
	workerID    string
}

// NewCoordinator creates a run coordinator around a job executor.
func NewCoordinator(logger *slog.Logger, exec *executor.Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:     logger.With("module", "run"),
		baseLogger: logger,
		executor:   exec,
		validate:   validator.New(),
		workerID:   "worker-" + uuid.New().String()[:8],
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Request describes one run to coordinate.
type Request struct {
	RunID    string // Generated when empty
	Workflow *models.Workflow
	Vars     map[string]string
	Secrets  map[string]models.Secret
	Metadata map[string]any
}

// Execute validates the workflow, expands matrices, and runs every job
// instance to a terminal state. The returned result is complete even
// when the run failed; the error is reserved for validation and setup
// problems.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*models.RunResult, error) {
	if req.RunID == "" {
		req.RunID = "run-" + uuid.New().String()[:8]
	}

	logger := c.logger.With("run_id", req.RunID, "workflow_id", req.Workflow.ID)

	dag, instances, err := c.prepare(req.Workflow)
	if err != nil {
		logger.ErrorContext(ctx, "Workflow rejected", "error", err)

		return nil, err
	}

	if c.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, c.tracer, "run.execute",
			attribute.String(otelhelper.RunIDKey, req.RunID),
			attribute.String(otelhelper.WorkflowIDKey, req.Workflow.ID),
			attribute.String(otelhelper.WorkerIDKey, c.workerID),
		)
		defer span.End()
	}

	logger.InfoContext(ctx, "Starting run", "instances", len(instances))

	result := &models.RunResult{
		RunID:      req.RunID,
		WorkflowID: req.Workflow.ID,
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Metadata:   req.Metadata,
	}

	c.saveResult(ctx, logger, result)
	c.publish(ctx, req, events.RunStarted{
		BaseEvent:     c.baseEvent(req, events.RunStartedEvent),
		InstanceCount: len(instances),
	})

	boardState := newBoard()
	sched := scheduler.New(c.baseLogger, dag, c.conditionFunc(req, boardState),
		scheduler.WithGlobalParallel(c.maxParallel))

	for _, inst := range instances {
		sched.Register(inst)
		boardState.register(inst.Key())
	}

	c.dispatchLoop(ctx, logger, req, sched, boardState, instances)

	result.Jobs = boardState.jobResults(func(key scheduler.InstanceKey) models.JobStatus {
		status, _ := sched.Status(key)

		return status
	})
	result.Status = runStatus(result.Jobs, ctx.Err() != nil)
	result.FinishedAt = time.Now().UTC()

	c.saveResult(ctx, logger, result)
	c.publish(ctx, req, events.RunFinished{
		BaseEvent: c.baseEvent(req, events.RunFinishedEvent),
		Status:    result.Status,
		Duration:  result.FinishedAt.Sub(result.StartedAt),
	})

	logger.InfoContext(ctx, "Run finished", "status", result.Status)

	return result, nil
}

// prepare validates the definition and expands every job into concrete
// instances. All validation issues are collected before returning.
func (c *Coordinator) prepare(workflow *models.Workflow) (*graph.Graph, []*scheduler.Instance, error) {
	var issues []string

	err := c.validate.Struct(workflow)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fieldError := range fieldErrors {
				issues = append(issues, fmt.Sprintf("invalid field %s: %s", fieldError.Namespace(), fieldError.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	seen := make(map[string]bool, len(workflow.Jobs))
	for _, job := range workflow.Jobs {
		if seen[job.ID] {
			issues = append(issues, "duplicate job id: "+job.ID)
		}

		seen[job.ID] = true
	}

	dag, err := graph.Build(workflow.Jobs)
	if err != nil {
		issues = append(issues, err.Error())
	}

	var instances []*scheduler.Instance

	for _, job := range workflow.Jobs {
		assignments, err := expandJob(job)
		if err != nil {
			issues = append(issues, fmt.Sprintf("job %s: %v", job.ID, err))

			continue
		}

		for _, assignment := range assignments {
			instances = append(instances, scheduler.NewInstance(job, assignment))
		}
	}

	if len(issues) > 0 {
		return nil, nil, NewValidationError(workflow.ID, issues...)
	}

	return dag, instances, nil
}

func expandJob(job *models.Job) ([]matrix.Assignment, error) {
	if job.Strategy == nil || job.Strategy.Matrix == nil {
		return []matrix.Assignment{{}}, nil
	}

	return matrix.Expand(job.Strategy.Matrix)
}

// conditionFunc evaluates a job-level condition against the dependency
// state the scheduler observed. An empty condition defaults to
// success(), which is how a failed dependency skips its dependents.
func (c *Coordinator) conditionFunc(req Request, boardState *board) scheduler.ConditionFunc {
	return func(inst *scheduler.Instance, depsFailed, depsCancelled bool) (bool, error) {
		condition := inst.Job.If
		if condition == "" {
			condition = defaultCondition
		}

		evalCtx := c.baseContext(req, boardState, inst.Job).
			WithMatrix(map[string]any(inst.Matrix)).
			WithStatus(expr.Status{Failed: depsFailed, Cancelled: depsCancelled})

		return expr.EvaluateBool(condition, evalCtx)
	}
}

// baseContext assembles the namespaces shared by a job's condition and
// its steps. The needs namespace holds only this job's declared
// dependencies; anything else stays an unknown reference.
func (c *Coordinator) baseContext(req Request, boardState *board, job *models.Job) *expr.Context {
	needs := make(map[string]map[string]string, len(job.Needs))
	for _, depID := range job.Needs {
		needs[depID] = boardState.needsEntry(depID)
	}

	return expr.NewContext().
		WithEnv(req.Workflow.Env).
		WithVars(req.Vars).
		WithSecrets(req.Secrets).
		WithNeeds(needs)
}

// dispatchLoop admits eligible instances and runs each on its own
// goroutine until every instance is terminal. Context cancellation
// aborts the run once and then drains the still-running instances.
func (c *Coordinator) dispatchLoop(
	ctx context.Context,
	logger *slog.Logger,
	req Request,
	sched *scheduler.Scheduler,
	boardState *board,
	instances []*scheduler.Instance,
) {
	var wg sync.WaitGroup

	for !sched.Done() {
		if ctx.Err() != nil {
			// Abort marks everything not yet running as cancelled and
			// signals the rest; the WaitGroup drains them below.
			logger.WarnContext(ctx, "Run cancelled, aborting remaining instances")
			sched.Abort()

			break
		}

		for _, inst := range sched.Admit(ctx) {
			wg.Add(1)

			go func(inst *scheduler.Instance) {
				defer wg.Done()
				c.runInstance(ctx, req, sched, boardState, inst)
			}(inst)
		}

		if sched.Done() {
			break
		}

		sched.Wait(ctx)
	}

	wg.Wait()

	// Instances that never ran still need their lifecycle event.
	for _, inst := range instances {
		status, _ := sched.Status(inst.Key())
		if status == models.JobStatusSkipped || status == models.JobStatusCancelled {
			c.publish(ctx, req, events.JobInstanceSkipped{
				BaseEvent: c.baseEvent(req, events.JobInstanceSkippedEvent),
				JobID:     inst.Job.ID,
				MatrixKey: inst.MatrixKey,
				Status:    status,
			})
		}
	}
}

// runInstance executes one admitted instance and reports its terminal
// status back to the scheduler.
func (c *Coordinator) runInstance(
	ctx context.Context,
	req Request,
	sched *scheduler.Scheduler,
	boardState *board,
	inst *scheduler.Instance,
) {
	runCtx := inst.RunContext()

	var span trace.Span

	if c.tracer != nil {
		runCtx, span = otelhelper.StartSpan(runCtx, c.tracer, "run.instance",
			attribute.String(otelhelper.RunIDKey, req.RunID),
			attribute.String(otelhelper.JobIDKey, inst.Job.ID),
			attribute.String(otelhelper.MatrixKeyKey, inst.MatrixKey),
		)
		defer span.End()
	}

	c.publish(ctx, req, events.JobInstanceStarted{
		BaseEvent: c.baseEvent(req, events.JobInstanceStartedEvent),
		JobID:     inst.Job.ID,
		MatrixKey: inst.MatrixKey,
		Matrix:    map[string]any(inst.Matrix),
	})

	result := c.executor.Run(runCtx, executor.JobRequest{
		RunID:       req.RunID,
		Workflow:    req.Workflow,
		Job:         inst.Job,
		MatrixKey:   inst.MatrixKey,
		Matrix:      inst.Matrix,
		BaseContext: c.baseContext(req, boardState, inst.Job),
		Secrets:     req.Secrets,
	})

	boardState.record(inst.Key(), &result)
	sched.Complete(inst, result.Status)

	if span != nil && result.Status == models.JobStatusFailed {
		otelhelper.SetError(span, errors.New(result.Error),
			attribute.String(otelhelper.JobIDKey, inst.Job.ID))
	}

	c.publish(ctx, req, events.JobInstanceFinished{
		BaseEvent:    c.baseEvent(req, events.JobInstanceFinishedEvent),
		JobID:        inst.Job.ID,
		MatrixKey:    inst.MatrixKey,
		Status:       result.Status,
		Outputs:      result.Outputs,
		ErrorMessage: result.Error,
		DurationMs:   result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})
}

func (c *Coordinator) baseEvent(req Request, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: req.Workflow.ID,
		RunID:      req.RunID,
		WorkerID:   c.workerID,
	}
}

func (c *Coordinator) publish(ctx context.Context, req Request, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	err := c.eventBus.Publish(ctx, req.RunID, event)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (c *Coordinator) saveResult(ctx context.Context, logger *slog.Logger, result *models.RunResult) {
	if c.store == nil {
		return
	}

	err := c.store.SaveRunResult(ctx, result)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist run result", "error", err)
	}
}

// runStatus folds instance statuses into the overall run status.
func runStatus(jobs []*models.JobResult, aborted bool) models.RunStatus {
	for _, job := range jobs {
		if job.Status == models.JobStatusFailed {
			return models.RunStatusFailed
		}
	}

	if aborted {
		return models.RunStatusCancelled
	}

	for _, job := range jobs {
		if job.Status == models.JobStatusCancelled {
			return models.RunStatusCancelled
		}
	}

	return models.RunStatusSucceeded
}
