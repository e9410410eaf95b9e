// Package runner abstracts the execution environment a job's shell
// steps run inside. The engine never spawns processes itself; it
// acquires an Environment from a Runner and releases it when the job
// instance finishes.
package runner

import "context"

// Requirements describes the environment a job asks for (the runs_on
// label plus the base environment variables every step inherits).
type Requirements struct {
	Label   string
	WorkDir string
	Env     map[string]string
}

// Command is one shell step to execute inside an environment.
type Command struct {
	Script string
	Env    map[string]string
}

// Result carries the observable outcome of one executed command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner provisions isolated execution environments.
type Runner interface {
	Acquire(ctx context.Context, req Requirements) (Environment, error)
}

// Environment executes commands for exactly one job instance and is
// released when that instance reaches a terminal state.
type Environment interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
	WorkDir() string
	Release(ctx context.Context) error
}
