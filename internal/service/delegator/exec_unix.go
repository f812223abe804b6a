//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package delegator

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/oshokin/snaplauncher/internal/logger"
)

// Exec replaces the launcher process image with the tool. The exit code of
// the invocation is then the tool's own, with no process in between.
type Exec struct{}

// New returns the preferred delegator for the current platform.
func New() Delegator {
	return Exec{}
}

// Delegate only returns when the tool could not be executed.
func (Exec) Delegate(ctx context.Context, inv Invocation) (int, error) {
	path, err := lookPath(inv.Path)
	if err != nil {
		return 0, &ExecError{Path: inv.Path, Err: err}
	}

	logger.DebugKV(ctx, "Replacing launcher with tool", "path", path, "args", inv.Args)

	argv := append([]string{path}, inv.Args...)

	for {
		err = unix.Exec(path, argv, inv.Env)
		if err != unix.EINTR { //nolint:errorlint // Raw errno from the syscall.
			break
		}
	}

	return 0, &ExecError{Path: path, Err: err}
}
