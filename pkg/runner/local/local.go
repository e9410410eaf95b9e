// Package local provides a Runner that executes step commands as child
// processes on the host. Each acquired environment gets its own
// temporary working directory; isolation beyond that is a deployment
// concern.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/dukex/conveyor/pkg/runner"
)

// Runner implements runner.Runner on top of os/exec.
type Runner struct {
	logger *slog.Logger
	shell  string
}

// NewRunner creates a local runner. An empty shell defaults to
// /bin/sh.
func NewRunner(logger *slog.Logger, shell string) *Runner {
	if shell == "" {
		shell = "/bin/sh"
	}

	return &Runner{
		logger: logger.With("module", "runner.local"),
		shell:  shell,
	}
}

// Acquire creates a fresh working directory for one job instance.
func (r *Runner) Acquire(ctx context.Context, req runner.Requirements) (runner.Environment, error) {
	workDir := req.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "conveyor-job-")
		if err != nil {
			return nil, fmt.Errorf("creating job work directory: %w", err)
		}

		workDir = dir
	}

	r.logger.DebugContext(ctx, "Acquired local environment", "work_dir", workDir, "label", req.Label)

	return &environment{
		shell:   r.shell,
		workDir: workDir,
		baseEnv: req.Env,
		owned:   req.WorkDir == "",
	}, nil
}

type environment struct {
	shell   string
	workDir string
	baseEnv map[string]string
	owned   bool
}

func (e *environment) Execute(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	proc := exec.CommandContext(ctx, e.shell, "-c", cmd.Script)
	proc.Dir = e.workDir
	proc.Env = mergedEnv(e.baseEnv, cmd.Env)

	var stdout, stderr bytes.Buffer

	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()

	result := runner.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if proc.ProcessState != nil {
		result.ExitCode = proc.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		result.ExitCode = -1

		return result, fmt.Errorf("running command: %w", err)
	}

	return result, nil
}

func (e *environment) WorkDir() string {
	return e.workDir
}

func (e *environment) Release(_ context.Context) error {
	if !e.owned {
		return nil
	}

	return os.RemoveAll(e.workDir)
}

func mergedEnv(base, overlay map[string]string) []string {
	env := os.Environ()

	for k, v := range base {
		env = append(env, k+"="+v)
	}

	for k, v := range overlay {
		env = append(env, k+"="+v)
	}

	return env
}
