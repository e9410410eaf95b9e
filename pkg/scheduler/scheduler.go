// Package scheduler decides which job instances may run at any moment,
// honoring needs satisfaction, job conditions, per-group concurrency
// budgets, and the fail-fast policy. It owns every instance's state
// machine; terminal states are final.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/conveyor/pkg/graph"
	"github.com/dukex/conveyor/pkg/models"
)

// ConditionFunc evaluates an instance's `if` condition given that
// instance's dependency-derived aggregate status. An evaluation error
// is treated as false by the scheduler (fail-safe), never retried.
type ConditionFunc func(inst *Instance, depsFailed, depsCancelled bool) (bool, error)

// Option configures scheduler policy.
type Option func(*Scheduler)

// WithGlobalParallel bounds concurrently Running instances across the
// whole run, in addition to per-group max-parallel. Zero means
// unbounded. max-parallel scoping is configurable policy: the default
// per-group behavior matches strategy.max-parallel placement, and this
// option adds a run-wide bound when an installation wants one.
func WithGlobalParallel(n int) Option {
	return func(s *Scheduler) {
		s.globalLimit = n
	}
}

// Scheduler tracks every instance of one run. All exported methods are
// safe for concurrent use.
type Scheduler struct {
	logger      *slog.Logger
	graph       *graph.Graph
	condition   ConditionFunc
	globalLimit int

	mu           sync.Mutex
	instances    map[InstanceKey]*Instance
	byJob        map[string][]*Instance
	groupRunning map[string]int
	running      int
	remaining    int
	aborted      bool
	wake         chan struct{}
}

// New creates a scheduler over the job DAG.
func New(logger *slog.Logger, dag *graph.Graph, condition ConditionFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:       logger.With("module", "scheduler"),
		graph:        dag,
		condition:    condition,
		instances:    make(map[InstanceKey]*Instance),
		byJob:        make(map[string][]*Instance),
		groupRunning: make(map[string]int),
		wake:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register adds a pending instance before the run starts.
func (s *Scheduler) Register(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances[inst.Key()] = inst
	s.byJob[inst.Job.ID] = append(s.byJob[inst.Job.ID], inst)
	s.remaining++
}

// Status returns the current status of one instance.
func (s *Scheduler) Status(key InstanceKey) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[key]
	if !ok {
		return "", false
	}

	return inst.status, true
}

// Admit performs one scheduling tick: it advances every non-terminal
// instance as far as its gates allow and returns the instances that
// just transitioned to Running, for dispatch to the worker pool.
func (s *Scheduler) Admit(ctx context.Context) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	var admitted []*Instance

	// Walk in topological order so upstream skip decisions settle in a
	// single tick before dependents are inspected.
	for _, jobID := range s.graph.Order() {
		for _, inst := range s.byJob[jobID] {
			if inst.status.Terminal() || inst.status == models.JobStatusRunning {
				continue
			}

			s.advance(inst)

			if inst.status != models.JobStatusEligible {
				continue
			}

			if !s.slotFree(inst) {
				continue
			}

			runCtx, cancel := context.WithCancel(ctx)
			inst.cancel = cancel
			inst.runCtx = runCtx
			inst.status = models.JobStatusRunning
			s.groupRunning[inst.Job.ID]++
			s.running++

			admitted = append(admitted, inst)
		}
	}

	return admitted
}

// advance moves one instance through Pending -> Blocked -> Eligible or
// straight to Skipped when its dependencies or condition rule it out.
func (s *Scheduler) advance(inst *Instance) {
	if s.aborted {
		s.markTerminalLocked(inst, models.JobStatusCancelled)

		return
	}

	allTerminal, depsFailed, depsCancelled := s.dependencyState(inst)

	if !allTerminal {
		if inst.status == models.JobStatusPending {
			inst.status = models.JobStatusBlocked
		}

		return
	}

	if inst.status == models.JobStatusEligible {
		return
	}

	// Dependencies settled: the instance's condition decides between
	// Eligible and Skipped. The default success() condition is how a
	// failed dependency propagates Skipped downstream; an explicit
	// failure()/always() condition opts back in.
	shouldRun, err := s.condition(inst, depsFailed, depsCancelled)
	if err != nil {
		s.logger.Warn("Job condition failed to evaluate, skipping instance",
			"instance", inst.Key().String(), "error", err)

		s.markTerminalLocked(inst, models.JobStatusSkipped)

		return
	}

	if !shouldRun {
		s.markTerminalLocked(inst, models.JobStatusSkipped)

		return
	}

	inst.status = models.JobStatusEligible
}

// dependencyState inspects every instance of every needed job.
func (s *Scheduler) dependencyState(inst *Instance) (allTerminal, depsFailed, depsCancelled bool) {
	allTerminal = true

	for _, depID := range s.graph.Needs(inst.Job.ID) {
		for _, dep := range s.byJob[depID] {
			if !dep.status.Terminal() {
				allTerminal = false

				continue
			}

			switch dep.status {
			case models.JobStatusFailed:
				depsFailed = true
			case models.JobStatusCancelled:
				depsCancelled = true
			}
		}
	}

	return allTerminal, depsFailed, depsCancelled
}

func (s *Scheduler) slotFree(inst *Instance) bool {
	if s.globalLimit > 0 && s.running >= s.globalLimit {
		return false
	}

	limit := inst.Job.Strategy.ParallelLimit()
	if limit > 0 && s.groupRunning[inst.Job.ID] >= limit {
		return false
	}

	return true
}

// Complete records a terminal status for a Running instance and applies
// the fail-fast policy to its matrix siblings.
func (s *Scheduler) Complete(inst *Instance, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.status != models.JobStatusRunning {
		return
	}

	s.groupRunning[inst.Job.ID]--
	s.running--
	s.markTerminalLocked(inst, status)

	if status == models.JobStatusFailed && inst.Job.Strategy.FailFastEnabled() {
		s.failFastLocked(inst)
	}
}

// failFastLocked cancels matrix siblings of a failed instance: not-yet-
// running siblings terminate immediately, running ones are signalled
// and finish cooperatively.
func (s *Scheduler) failFastLocked(failed *Instance) {
	for _, sibling := range s.byJob[failed.Job.ID] {
		if sibling == failed || sibling.status.Terminal() {
			continue
		}

		if sibling.status == models.JobStatusRunning {
			s.logger.Info("Signalling running matrix sibling for cancellation",
				"instance", sibling.Key().String())

			if sibling.cancel != nil {
				sibling.cancel()
			}

			continue
		}

		s.logger.Info("Cancelling matrix sibling after fail-fast",
			"instance", sibling.Key().String())

		s.markTerminalLocked(sibling, models.JobStatusCancelled)
	}
}

// Abort cancels the whole run: every instance not yet running becomes
// Cancelled, running instances are signalled.
func (s *Scheduler) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aborted = true

	for _, inst := range s.instances {
		if inst.status.Terminal() {
			continue
		}

		if inst.status == models.JobStatusRunning {
			if inst.cancel != nil {
				inst.cancel()
			}

			continue
		}

		s.markTerminalLocked(inst, models.JobStatusCancelled)
	}
}

// Done reports whether every instance reached a terminal state.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remaining == 0
}

// Wait blocks until the scheduler state changed since the last wake or
// the context is cancelled.
func (s *Scheduler) Wait(ctx context.Context) {
	select {
	case <-s.wake:
	case <-ctx.Done():
	}
}

func (s *Scheduler) markTerminalLocked(inst *Instance, status models.JobStatus) {
	if inst.status.Terminal() {
		return
	}

	inst.status = status
	s.remaining--
	s.notifyLocked()
}

// notifyLocked wakes the coordinator loop without blocking or piling up
// signals.
func (s *Scheduler) notifyLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
