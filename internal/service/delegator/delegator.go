package delegator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Invocation is a fully expanded launch of the cached tool.
type Invocation struct {
	// Path is the program to run. Bare names are looked up on PATH.
	Path string
	// Args follow the program name, unmodified and in order.
	Args []string
	// Env is the complete child environment.
	Env []string
}

// ExecError reports that the cached tool could not be launched at all.
type ExecError struct {
	// Path is the program that failed to start.
	Path string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("unable to launch %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// Delegator hands control to the cached tool.
type Delegator interface {
	// Delegate runs inv and returns its exit code. Implementations that replace
	// the current process image only return on failure.
	Delegate(ctx context.Context, inv Invocation) (int, error)
}

// Environ returns the launcher environment extended by extra KEY=VALUE pairs.
// Later pairs win over earlier ones with the same key.
func Environ(extra []string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}

	overridden := make(map[string]struct{}, len(extra))
	for _, kv := range extra {
		key, _, _ := strings.Cut(kv, "=")
		overridden[key] = struct{}{}
	}

	merged := make([]string, 0, len(env)+len(extra))

	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overridden[key]; !ok {
			merged = append(merged, kv)
		}
	}

	return append(merged, extra...)
}

// lookPath resolves a program to the file that will be executed.
func lookPath(program string) (string, error) {
	if strings.ContainsAny(program, `/\`) {
		path, err := filepath.Abs(program)
		if err != nil {
			return "", err
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}

		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", path)
		}

		return path, nil
	}

	return exec.LookPath(program)
}
