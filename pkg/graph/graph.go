// Package graph builds the job dependency DAG from declared needs
// relationships, rejects cycles, and computes the topological order the
// scheduler uses as its admission hint.
package graph

import (
	"fmt"
	"strings"

	"github.com/dukex/conveyor/pkg/models"
)

// ErrUnknownDependency reports a needs entry naming a job that does not
// exist in the workflow.
type ErrUnknownDependency struct {
	JobID string
	Needs string
}

func (e *ErrUnknownDependency) Error() string {
	return fmt.Sprintf("job %q needs unknown job %q", e.JobID, e.Needs)
}

// ErrCycle reports a dependency cycle with one witness path for
// diagnostics.
type ErrCycle struct {
	Witness []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Witness, " -> "))
}

// Graph is the immutable job dependency DAG.
type Graph struct {
	order      []string
	needs      map[string][]string
	dependents map[string][]string
}

// Build validates the needs relationships of every job and returns the
// DAG, or the first validation error encountered.
func Build(jobs []*models.Job) (*Graph, error) {
	byID := make(map[string]*models.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	g := &Graph{
		needs:      make(map[string][]string, len(jobs)),
		dependents: make(map[string][]string, len(jobs)),
	}

	for _, job := range jobs {
		for _, dep := range job.Needs {
			if _, ok := byID[dep]; !ok {
				return nil, &ErrUnknownDependency{JobID: job.ID, Needs: dep}
			}

			g.needs[job.ID] = append(g.needs[job.ID], dep)
			g.dependents[dep] = append(g.dependents[dep], job.ID)
		}
	}

	order, err := topologicalOrder(jobs, g.needs)
	if err != nil {
		return nil, err
	}

	g.order = order

	return g, nil
}

// Order returns a deterministic topological ordering of job ids: every
// job appears after all of its needs, ties broken by declaration order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)

	return out
}

// Needs returns the direct dependencies of a job.
func (g *Graph) Needs(jobID string) []string {
	return g.needs[jobID]
}

// Dependents returns the jobs that directly need the given job.
func (g *Graph) Dependents(jobID string) []string {
	return g.dependents[jobID]
}

// TransitiveNeeds returns every job reachable through needs edges from
// the given job. Output visibility follows this closure: a job may only
// read outputs of jobs it transitively needs.
func (g *Graph) TransitiveNeeds(jobID string) map[string]bool {
	closure := make(map[string]bool)

	var visit func(id string)

	visit = func(id string) {
		for _, dep := range g.needs[id] {
			if !closure[dep] {
				closure[dep] = true
				visit(dep)
			}
		}
	}

	visit(jobID)

	return closure
}

// Levels groups the topological order into dependency levels: level 0
// has no needs, level n depends only on earlier levels.
func (g *Graph) Levels() [][]string {
	level := make(map[string]int, len(g.order))

	var levels [][]string

	for _, id := range g.order {
		depth := 0
		for _, dep := range g.needs[id] {
			if level[dep]+1 > depth {
				depth = level[dep] + 1
			}
		}

		level[id] = depth

		for len(levels) <= depth {
			levels = append(levels, nil)
		}

		levels[depth] = append(levels[depth], id)
	}

	return levels
}

// topologicalOrder runs a depth-first sort in declaration order and
// reports the first cycle it closes as the witness.
func topologicalOrder(jobs []*models.Job, needs map[string][]string) ([]string, error) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(jobs))
	order := make([]string, 0, len(jobs))

	var stack []string

	var visit func(id string) error

	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case inStack:
			// Close the witness loop from the first occurrence of id.
			witness := []string{id}
			for i := len(stack) - 1; i >= 0 && stack[i] != id; i-- {
				witness = append([]string{stack[i]}, witness...)
			}

			witness = append([]string{id}, witness...)

			return &ErrCycle{Witness: witness}
		}

		state[id] = inStack
		stack = append(stack, id)

		for _, dep := range needs[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		order = append(order, id)

		return nil
	}

	for _, job := range jobs {
		if err := visit(job.ID); err != nil {
			return nil, err
		}
	}

	return order, nil
}
