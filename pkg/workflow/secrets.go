package workflow

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/dukex/conveyor/pkg/models"
)

var secretRefPattern = regexp.MustCompile(`\bsecrets\.([A-Za-z_][A-Za-z0-9_]*)`)

// SecretNames collects every secret name a workflow references inside
// its expressions, so callers can resolve them up front before the
// run starts.
func SecretNames(workflow *models.Workflow) []string {
	seen := make(map[string]struct{})

	collect := func(value string) {
		for _, match := range secretRefPattern.FindAllStringSubmatch(value, -1) {
			seen[match[1]] = struct{}{}
		}
	}

	for _, value := range workflow.Env {
		collect(value)
	}

	for _, job := range workflow.Jobs {
		collect(job.If)

		for _, value := range job.Env {
			collect(value)
		}

		for _, value := range job.Outputs {
			collect(value)
		}

		for _, step := range job.Steps {
			collect(step.If)
			collect(step.Run)

			for _, value := range step.Env {
				collect(value)
			}

			for _, value := range step.With {
				collect(fmt.Sprint(value))
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
