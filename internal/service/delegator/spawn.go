package delegator

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/oshokin/snaplauncher/internal/logger"
)

// Spawn runs the tool as a child process, forwards termination signals to it
// and reports its exit code.
type Spawn struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewSpawn returns a Spawn wired to the launcher's own standard streams.
func NewSpawn() *Spawn {
	return &Spawn{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Delegate starts the child, waits for it and returns its exit code.
// The context is not used to kill the child: signals are forwarded instead.
func (s *Spawn) Delegate(ctx context.Context, inv Invocation) (int, error) {
	path, err := lookPath(inv.Path)
	if err != nil {
		return 0, &ExecError{Path: inv.Path, Err: err}
	}

	//nolint:gosec // The artifact path comes from the installation layout.
	cmd := exec.Command(path, inv.Args...)
	cmd.Env = inv.Env
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(signals)

	if err = cmd.Start(); err != nil {
		return 0, &ExecError{Path: path, Err: err}
	}

	logger.DebugKV(ctx, "Spawned tool", "path", path, "pid", cmd.Process.Pid)

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case sig := <-signals:
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr), nil
	}

	return 0, &ExecError{Path: path, Err: err}
}

// exitCode maps a child's termination to a shell-style exit code.
func exitCode(err *exec.ExitError) int {
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return signalExitBase + int(status.Signal())
	}

	return err.ExitCode()
}

// signalExitBase is added to the signal number of a child killed by a signal.
const signalExitBase = 128
