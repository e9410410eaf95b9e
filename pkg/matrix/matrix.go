// Package matrix expands a job's matrix specification into the concrete
// set of instance assignments, applying include and exclude rules.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"

	"github.com/dukex/conveyor/pkg/models"
)

// ErrUnknownAxis reports an include/exclude entry that names an axis the
// matrix does not declare.
type ErrUnknownAxis struct {
	Rule string // "include" or "exclude"
	Axis string
}

func (e *ErrUnknownAxis) Error() string {
	return fmt.Sprintf("matrix %s entry references unknown axis %q", e.Rule, e.Axis)
}

// Assignment maps axis names to one concrete value combination, plus
// any extra metadata merged in by include rules.
type Assignment map[string]any

// Key returns the stable identity of the assignment within its matrix
// group: axis=value pairs sorted by name, comma-joined. The empty
// assignment has the empty key.
func (a Assignment) Key() string {
	if len(a) == 0 {
		return ""
	}

	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, a[name]))
	}

	return strings.Join(pairs, ",")
}

func (a Assignment) clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}

	return out
}

// Expand produces the ordered assignment list for a matrix spec:
// Cartesian product in axis declaration order, include entries merged or
// appended, exclude entries removed last. A nil or axis-less matrix
// yields exactly one empty assignment so the job runs once.
func Expand(spec *models.Matrix) ([]Assignment, error) {
	if spec == nil {
		return []Assignment{{}}, nil
	}

	if err := validateEntries(spec); err != nil {
		return nil, err
	}

	product := cartesian(spec.Axes)

	expanded, err := applyIncludes(spec, product)
	if err != nil {
		return nil, err
	}

	return applyExcludes(spec, expanded), nil
}

// validateEntries rejects exclude axis names the matrix does not
// declare. Include entries are exempt: a key outside the declared axes
// is how an include introduces a new combination.
func validateEntries(spec *models.Matrix) error {
	for _, entry := range spec.Exclude {
		for name := range entry {
			if !spec.HasAxis(name) {
				return &ErrUnknownAxis{Rule: "exclude", Axis: name}
			}
		}
	}

	return nil
}

func cartesian(axes []models.MatrixAxis) []Assignment {
	result := []Assignment{{}}

	for _, axis := range axes {
		next := make([]Assignment, 0, len(result)*len(axis.Values))

		for _, partial := range result {
			for _, value := range axis.Values {
				assignment := partial.clone()
				assignment[axis.Name] = value
				next = append(next, assignment)
			}
		}

		result = next
	}

	return result
}

// applyIncludes merges each include entry into every product assignment
// whose declared-axis values it fully matches, or appends it as a new
// assignment when it matches none.
func applyIncludes(spec *models.Matrix, product []Assignment) ([]Assignment, error) {
	result := product

	for _, entry := range spec.Include {
		matched := false

		for i, assignment := range result[:len(product)] {
			if !matchesOnDeclaredAxes(spec, entry, assignment) {
				continue
			}

			matched = true

			merged := assignment.clone()
			if err := mergo.Merge(&merged, Assignment(entry), mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merging include entry: %w", err)
			}

			result[i] = merged
		}

		if !matched {
			appended := Assignment{}
			for k, v := range entry {
				appended[k] = v
			}

			result = append(result, appended)
		}
	}

	return result, nil
}

// matchesOnDeclaredAxes reports whether the include entry addresses an
// existing assignment: every key must be a declared axis and every value
// must equal the assignment's. An entry carrying any key outside the
// declared axes introduces a new combination and is appended instead.
func matchesOnDeclaredAxes(spec *models.Matrix, entry map[string]any, assignment Assignment) bool {
	if len(entry) == 0 {
		return false
	}

	for name, value := range entry {
		if !spec.HasAxis(name) {
			return false
		}

		if fmt.Sprintf("%v", assignment[name]) != fmt.Sprintf("%v", value) {
			return false
		}
	}

	return true
}

func applyExcludes(spec *models.Matrix, assignments []Assignment) []Assignment {
	result := make([]Assignment, 0, len(assignments))

	for _, assignment := range assignments {
		excluded := false

		for _, entry := range spec.Exclude {
			if matchesAll(entry, assignment) {
				excluded = true

				break
			}
		}

		if !excluded {
			result = append(result, assignment)
		}
	}

	return result
}

// matchesAll treats unspecified axes as wildcards: an exclude entry
// removes an assignment when every specified value matches.
func matchesAll(entry map[string]any, assignment Assignment) bool {
	for name, value := range entry {
		if fmt.Sprintf("%v", assignment[name]) != fmt.Sprintf("%v", value) {
			return false
		}
	}

	return true
}
