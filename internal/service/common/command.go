//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external program invocation.
type Command struct {
	// Name is the program, looked up on PATH when it has no separator.
	Name string
	// Args are passed after the program name.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env holds KEY=VALUE pairs added to the launcher's own environment.
	Env []string
	// Quiet discards the program's standard output.
	Quiet bool
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external commands.
type Runner interface {
	// Run executes the command with output streamed to the runner's writers.
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns its standard output.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Stdout receives standard output of non-quiet commands.
	Stdout io.Writer
	// Stderr receives standard error of every command.
	Stderr io.Writer
}

// NewExecRunner returns a runner that forwards child output to the launcher's stderr,
// keeping stdout free for the delegated tool.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	}
}

// Run executes cmd and waits for it. A non-zero exit status is an error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := r.build(ctx, cmd)

	c.Stdout = r.Stdout
	if cmd.Quiet {
		c.Stdout = io.Discard
	}

	c.Stderr = r.Stderr

	if err := c.Run(); err != nil {
		return fmt.Errorf("run %s: %w", cmd, err)
	}

	return nil
}

// Output executes cmd and returns what it printed on stdout.
// Stderr is included in the error when the command fails.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	var stderr bytes.Buffer

	c := r.build(ctx, cmd)
	c.Stderr = &stderr

	output, err := c.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("run %s: %w: %s", cmd, err, strings.TrimSpace(stderr.String()))
		}

		return nil, fmt.Errorf("run %s: %w", cmd, err)
	}

	return output, nil
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	//nolint:gosec // Commands come from the installation's own settings.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	return c
}
