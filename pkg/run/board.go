package run

import (
	"sync"

	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/scheduler"
)

// board collects instance results as they terminate and derives the
// needs namespace dependents evaluate against. Outputs of a matrix
// group are merged in completion order; within one instance each output
// key has a single writer, so the merge is deterministic per instance.
type board struct {
	mu            sync.Mutex
	order         []scheduler.InstanceKey
	results       map[scheduler.InstanceKey]*models.JobResult
	groupOutputs  map[string]map[string]string
	groupStatuses map[string][]models.JobStatus
}

func newBoard() *board {
	return &board{
		results:       make(map[scheduler.InstanceKey]*models.JobResult),
		groupOutputs:  make(map[string]map[string]string),
		groupStatuses: make(map[string][]models.JobStatus),
	}
}

// register reserves a slot so the final result lists instances in
// registration order regardless of completion order.
func (b *board) register(key scheduler.InstanceKey) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.order = append(b.order, key)
}

// record stores one terminal instance result. Outputs become visible to
// dependents only from instances that actually succeeded.
func (b *board) record(key scheduler.InstanceKey, result *models.JobResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.results[key] = result
	b.groupStatuses[key.JobID] = append(b.groupStatuses[key.JobID], result.Status)

	if result.Status != models.JobStatusSucceeded {
		return
	}

	merged := b.groupOutputs[key.JobID]
	if merged == nil {
		merged = make(map[string]string)
		b.groupOutputs[key.JobID] = merged
	}

	for name, value := range result.Outputs {
		merged[name] = value
	}
}

// needsEntry builds the needs.<job> namespace for one completed
// dependency: its merged outputs plus the reserved "result" key.
func (b *board) needsEntry(jobID string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := make(map[string]string, len(b.groupOutputs[jobID])+1)

	for name, value := range b.groupOutputs[jobID] {
		entry[name] = value
	}

	entry["result"] = string(aggregateResult(b.groupStatuses[jobID]))

	return entry
}

// jobResults returns every recorded result in registration order,
// synthesizing results for instances that never ran.
func (b *board) jobResults(statusOf func(scheduler.InstanceKey) models.JobStatus) []*models.JobResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*models.JobResult, 0, len(b.order))

	for _, key := range b.order {
		result, ok := b.results[key]
		if !ok {
			result = &models.JobResult{
				JobID:     key.JobID,
				MatrixKey: key.MatrixKey,
				Status:    statusOf(key),
			}
		}

		out = append(out, result)
	}

	return out
}

// aggregateResult folds a matrix group's instance statuses into the
// single result dependents observe: any failure poisons the group, then
// cancellation, and a fully skipped group reads as skipped.
func aggregateResult(statuses []models.JobStatus) models.JobStatus {
	if len(statuses) == 0 {
		return models.JobStatusSkipped
	}

	allSkipped := true

	for _, status := range statuses {
		switch status {
		case models.JobStatusFailed:
			return models.JobStatusFailed
		case models.JobStatusSkipped:
			continue
		}

		allSkipped = false
	}

	for _, status := range statuses {
		if status == models.JobStatusCancelled {
			return models.JobStatusCancelled
		}
	}

	if allSkipped {
		return models.JobStatusSkipped
	}

	return models.JobStatusSucceeded
}
