package scheduler

import (
	"context"

	"github.com/dukex/conveyor/pkg/matrix"
	"github.com/dukex/conveyor/pkg/models"
)

// Instance is one concrete execution unit: a job definition paired with
// a matrix assignment. Status transitions are owned exclusively by the
// scheduler; everyone else reads snapshots.
type Instance struct {
	Job       *models.Job
	MatrixKey string
	Matrix    matrix.Assignment

	status models.JobStatus
	cancel context.CancelFunc
	runCtx context.Context
}

// RunContext returns the context created when the instance was admitted.
// It is cancelled on fail-fast or run abort. Nil before admission.
func (i *Instance) RunContext() context.Context {
	return i.runCtx
}

// NewInstance creates an instance in the Pending state.
func NewInstance(job *models.Job, assignment matrix.Assignment) *Instance {
	return &Instance{
		Job:       job,
		MatrixKey: assignment.Key(),
		Matrix:    assignment,
		status:    models.JobStatusPending,
	}
}

// Key identifies the instance within a run.
func (i *Instance) Key() InstanceKey {
	return InstanceKey{JobID: i.Job.ID, MatrixKey: i.MatrixKey}
}

// InstanceKey is the (job id, matrix key) pair identifying one instance.
type InstanceKey struct {
	JobID     string
	MatrixKey string
}

func (k InstanceKey) String() string {
	if k.MatrixKey == "" {
		return k.JobID
	}

	return k.JobID + "[" + k.MatrixKey + "]"
}
