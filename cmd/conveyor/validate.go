package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conveyor/pkg/graph"
	"github.com/dukex/conveyor/pkg/matrix"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/trigger/schedule"
	"github.com/dukex/conveyor/pkg/workflow"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow definitions without running them",
		ArgsUsage: "<workflow.json>...",
		Action: func(ctx context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("at least one workflow file is required", 2)
			}

			loader := workflow.NewLoader()
			failed := false

			for _, path := range paths {
				if err := validateFile(loader, path); err != nil {
					fmt.Printf("%s: %v\n", path, err)

					failed = true

					continue
				}

				fmt.Printf("%s: ok\n", path)
			}

			if failed {
				return cli.Exit("validation failed", 1)
			}

			return nil
		},
	}
}

func validateFile(loader *workflow.Loader, path string) error {
	wf, err := loader.Load(path)
	if err != nil {
		return err
	}

	if _, err := graph.Build(wf.Jobs); err != nil {
		return err
	}

	if err := schedule.Validate(wf); err != nil {
		return err
	}

	return validateMatrices(wf)
}

func validateMatrices(wf *models.Workflow) error {
	for _, job := range wf.Jobs {
		if job.Strategy == nil || job.Strategy.Matrix == nil {
			continue
		}

		if _, err := matrix.Expand(job.Strategy.Matrix); err != nil {
			return fmt.Errorf("job %q: %w", job.ID, err)
		}
	}

	return nil
}
