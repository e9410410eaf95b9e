package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conveyor/pkg/artifacts"
	artifactfile "github.com/dukex/conveyor/pkg/artifacts/file"
	"github.com/dukex/conveyor/pkg/cmd"
	"github.com/dukex/conveyor/pkg/executor"
	"github.com/dukex/conveyor/pkg/log"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/run"
	"github.com/dukex/conveyor/pkg/runner/local"
	"github.com/dukex/conveyor/pkg/secrets"
	"github.com/dukex/conveyor/pkg/workflow"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Execute a workflow definition locally",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "var",
				Usage:   "Workflow variable as key=value (repeatable)",
				Sources: cli.EnvVars("CONVEYOR_VARS"),
			},
			&cli.StringSliceFlag{
				Name:  "secret",
				Usage: "Secret as key=value (repeatable, overrides the provider)",
			},
			&cli.StringFlag{
				Name:    "secrets-provider",
				Usage:   "Secrets provider URL (env://, redis://host/0?scope=acme)",
				Sources: cli.EnvVars("SECRETS_PROVIDER_URL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL for run results (file://path, postgres://...)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "artifacts-path",
				Usage:   "Directory for uploaded artifacts",
				Value:   "./data/artifacts",
				Sources: cli.EnvVars("ARTIFACTS_PATH"),
			},
			&cli.StringFlag{
				Name:    "shell",
				Usage:   "Shell used for run steps",
				Sources: cli.EnvVars("CONVEYOR_SHELL"),
			},
			&cli.IntFlag{
				Name:    "max-parallel",
				Usage:   "Run-wide cap on concurrently running job instances (0 = unlimited)",
				Sources: cli.EnvVars("MAX_PARALLEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return cli.Exit("workflow file is required", 2)
			}

			logger := log.WithModule("conveyor")

			wf, err := workflow.NewLoader().Load(path)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			resolved, err := resolveSecrets(ctx, wf, command)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			opts := []run.Option{}
			if command.Int("max-parallel") > 0 {
				opts = append(opts, run.WithMaxParallel(command.Int("max-parallel")))
			}

			if databaseURL := command.String("database-url"); databaseURL != "" {
				store := cmd.NewPersistence(ctx, logger, databaseURL)

				defer func() {
					if err := store.Close(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
					}
				}()

				opts = append(opts, run.WithPersistence(store))
			}

			coordinator := run.NewCoordinator(logger, newExecutor(command), opts...)

			result, err := coordinator.Execute(ctx, run.Request{
				Workflow: wf,
				Vars:     parsePairs(command.StringSlice("var")),
				Secrets:  resolved,
			})
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			printSummary(result)

			if result.Status != models.RunStatusSucceeded {
				return cli.Exit("run "+string(result.Status), 1)
			}

			return nil
		},
	}
}

func newExecutor(command *cli.Command) *executor.Executor {
	logger := log.WithModule("conveyor")

	var store artifacts.Store
	if path := command.String("artifacts-path"); path != "" {
		store = artifactfile.NewStore(path)
	}

	return executor.NewExecutor(
		logger,
		local.NewRunner(logger, command.String("shell")),
		cmd.NewRegistry(logger),
		store,
	)
}

// resolveSecrets merges --secret pairs over the provider lookups for
// every secret name the workflow references.
func resolveSecrets(ctx context.Context, wf *models.Workflow, command *cli.Command) (map[string]models.Secret, error) {
	resolved := make(map[string]models.Secret)

	names := workflow.SecretNames(wf)
	if len(names) > 0 {
		resolver := cmd.NewSecretsResolver(command.String("secrets-provider"))

		fromProvider, err := secrets.ResolveAll(ctx, resolver, names)
		if err != nil {
			return nil, fmt.Errorf("resolving secrets: %w", err)
		}

		resolved = fromProvider
	}

	for name, value := range parsePairs(command.StringSlice("secret")) {
		resolved[name] = models.NewSecret(value)
	}

	return resolved, nil
}

func parsePairs(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}

		out[key] = value
	}

	return out
}

func printSummary(result *models.RunResult) {
	fmt.Printf("run %s: %s (%s)\n", result.RunID, result.Status,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	for _, job := range result.Jobs {
		name := job.JobID
		if job.MatrixKey != "" {
			name = fmt.Sprintf("%s[%s]", job.JobID, job.MatrixKey)
		}

		fmt.Printf("  %-40s %s\n", name, job.Status)
	}
}
