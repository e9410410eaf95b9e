package scheduler

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/graph"
	"github.com/dukex/conveyor/pkg/matrix"
	"github.com/dukex/conveyor/pkg/models"
)

// defaultCondition mirrors the success() default: run only when no
// dependency failed or was cancelled.
func defaultCondition(_ *Instance, depsFailed, depsCancelled bool) (bool, error) {
	return !depsFailed && !depsCancelled, nil
}

func newTestScheduler(t *testing.T, jobs []*models.Job, cond ConditionFunc, opts ...Option) *Scheduler {
	t.Helper()

	dag, err := graph.Build(jobs)
	require.NoError(t, err)

	return New(slog.Default(), dag, cond, opts...)
}

func TestAdmitRespectsNeeds(t *testing.T) {
	build := &models.Job{ID: "build"}
	test := &models.Job{ID: "test", Needs: []string{"build"}}

	s := newTestScheduler(t, []*models.Job{build, test}, defaultCondition)

	buildInst := NewInstance(build, matrix.Assignment{})
	testInst := NewInstance(test, matrix.Assignment{})
	s.Register(buildInst)
	s.Register(testInst)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 1)
	assert.Equal(t, "build", admitted[0].Job.ID)

	status, ok := s.Status(testInst.Key())
	require.True(t, ok)
	assert.Equal(t, models.JobStatusBlocked, status)

	s.Complete(buildInst, models.JobStatusSucceeded)

	admitted = s.Admit(context.Background())
	require.Len(t, admitted, 1)
	assert.Equal(t, "test", admitted[0].Job.ID)
	assert.False(t, s.Done())

	s.Complete(testInst, models.JobStatusSucceeded)
	assert.True(t, s.Done())
}

func TestFailedDependencySkipsDependent(t *testing.T) {
	build := &models.Job{ID: "build"}
	deploy := &models.Job{ID: "deploy", Needs: []string{"build"}}

	s := newTestScheduler(t, []*models.Job{build, deploy}, defaultCondition)

	buildInst := NewInstance(build, matrix.Assignment{})
	deployInst := NewInstance(deploy, matrix.Assignment{})
	s.Register(buildInst)
	s.Register(deployInst)

	s.Admit(context.Background())
	s.Complete(buildInst, models.JobStatusFailed)

	admitted := s.Admit(context.Background())
	assert.Empty(t, admitted)

	status, _ := s.Status(deployInst.Key())
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.True(t, s.Done())
}

func TestConditionOptsIntoDependencyFailure(t *testing.T) {
	build := &models.Job{ID: "build"}
	cleanup := &models.Job{ID: "cleanup", Needs: []string{"build"}, If: "${{ failure() }}"}

	cond := func(inst *Instance, depsFailed, _ bool) (bool, error) {
		if inst.Job.If != "" {
			return depsFailed, nil
		}

		return !depsFailed, nil
	}

	s := newTestScheduler(t, []*models.Job{build, cleanup}, cond)

	buildInst := NewInstance(build, matrix.Assignment{})
	cleanupInst := NewInstance(cleanup, matrix.Assignment{})
	s.Register(buildInst)
	s.Register(cleanupInst)

	s.Admit(context.Background())
	s.Complete(buildInst, models.JobStatusFailed)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 1)
	assert.Equal(t, "cleanup", admitted[0].Job.ID)
}

func TestMaxParallelGatesAdmission(t *testing.T) {
	job := &models.Job{
		ID: "test",
		Strategy: &models.Strategy{
			MaxParallel: 1,
			Matrix:      &models.Matrix{Axes: []models.MatrixAxis{{Name: "os", Values: []any{"linux", "darwin"}}}},
		},
	}

	s := newTestScheduler(t, []*models.Job{job}, defaultCondition)

	linux := NewInstance(job, matrix.Assignment{"os": "linux"})
	darwin := NewInstance(job, matrix.Assignment{"os": "darwin"})
	s.Register(linux)
	s.Register(darwin)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 1)

	// Second slot opens only once the first instance finishes.
	assert.Empty(t, s.Admit(context.Background()))

	s.Complete(admitted[0], models.JobStatusSucceeded)

	admitted = s.Admit(context.Background())
	require.Len(t, admitted, 1)
}

func TestFailFastCancelsSiblings(t *testing.T) {
	job := &models.Job{
		ID: "test",
		Strategy: &models.Strategy{
			Matrix: &models.Matrix{Axes: []models.MatrixAxis{{Name: "os", Values: []any{"a", "b", "c"}}}},
		},
	}

	s := newTestScheduler(t, []*models.Job{job}, defaultCondition, WithGlobalParallel(2))

	a := NewInstance(job, matrix.Assignment{"os": "a"})
	b := NewInstance(job, matrix.Assignment{"os": "b"})
	c := NewInstance(job, matrix.Assignment{"os": "c"})
	s.Register(a)
	s.Register(b)
	s.Register(c)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 2)

	failed, running := admitted[0], admitted[1]
	s.Complete(failed, models.JobStatusFailed)

	// The still-running sibling is signalled, not force-terminated.
	assert.ErrorIs(t, running.RunContext().Err(), context.Canceled)

	runningStatus, _ := s.Status(running.Key())
	assert.Equal(t, models.JobStatusRunning, runningStatus)

	// The sibling that never started is cancelled outright.
	var waiting *Instance

	for _, inst := range []*Instance{a, b, c} {
		if inst != failed && inst != running {
			waiting = inst
		}
	}

	status, _ := s.Status(waiting.Key())
	assert.Equal(t, models.JobStatusCancelled, status)
}

func TestFailFastDisabledKeepsSiblings(t *testing.T) {
	disabled := false
	job := &models.Job{
		ID: "test",
		Strategy: &models.Strategy{
			FailFast: &disabled,
			Matrix:   &models.Matrix{Axes: []models.MatrixAxis{{Name: "os", Values: []any{"a", "b"}}}},
		},
	}

	s := newTestScheduler(t, []*models.Job{job}, defaultCondition, WithGlobalParallel(1))

	a := NewInstance(job, matrix.Assignment{"os": "a"})
	b := NewInstance(job, matrix.Assignment{"os": "b"})
	s.Register(a)
	s.Register(b)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 1)

	s.Complete(admitted[0], models.JobStatusFailed)

	admitted = s.Admit(context.Background())
	require.Len(t, admitted, 1)
}

func TestAbortCancelsEverything(t *testing.T) {
	first := &models.Job{ID: "first"}
	second := &models.Job{ID: "second", Needs: []string{"first"}}

	s := newTestScheduler(t, []*models.Job{first, second}, defaultCondition)

	firstInst := NewInstance(first, matrix.Assignment{})
	secondInst := NewInstance(second, matrix.Assignment{})
	s.Register(firstInst)
	s.Register(secondInst)

	admitted := s.Admit(context.Background())
	require.Len(t, admitted, 1)

	s.Abort()

	assert.ErrorIs(t, firstInst.RunContext().Err(), context.Canceled)

	status, _ := s.Status(secondInst.Key())
	assert.Equal(t, models.JobStatusCancelled, status)

	s.Complete(firstInst, models.JobStatusCancelled)
	assert.True(t, s.Done())
}
