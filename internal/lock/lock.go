package lock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/snaplauncher/internal/logger"
)

// Kind names a locking mechanism.
type Kind string

// Supported mechanisms, from strongest to weakest.
const (
	KindAdvisory Kind = "advisory"
	KindSpin     Kind = "spin"
	KindNone     Kind = "none"
)

// Lock is a cross-process mutual-exclusion capability over the cache directory.
type Lock interface {
	// Kind reports the mechanism in use.
	Kind() Kind
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is a held lock.
type Handle interface {
	// Release gives the lock up. It is safe to call more than once.
	Release() error
}

// Options locate the lock files.
type Options struct {
	// AdvisoryPath is the file advisory locks are taken on. It is never removed.
	AdvisoryPath string
	// SpinPath is the PID file created while the spin lock is held.
	SpinPath string
	// Interval is the pause between two attempts of a contended lock.
	Interval time.Duration
}

const (
	// DefaultInterval is used when Options.Interval is not positive.
	DefaultInterval = 100 * time.Millisecond

	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// Select probes the host once and returns the strongest mechanism that works:
// an advisory lock, else a PID lock file, else no locking at all.
// Probing failures are logged and never returned.
//
//nolint:ireturn // Callers only care about the capability.
func Select(ctx context.Context, opts Options) Lock {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	if err := os.MkdirAll(filepath.Dir(opts.AdvisoryPath), dirMode); err != nil {
		logger.WarnKV(ctx, "Cache directory is not writable, running without a rebuild lock", "error", err)
		return NoLock{}
	}

	err := probeAdvisory(opts.AdvisoryPath)
	if err == nil {
		return NewAdvisory(opts.AdvisoryPath, opts.Interval)
	}

	logger.DebugKV(ctx, "Advisory locks unavailable", "path", opts.AdvisoryPath, "error", err)

	if err = probeSpin(opts.SpinPath); err == nil {
		return NewSpin(opts.SpinPath, opts.Interval)
	}

	logger.WarnKV(ctx, "No locking primitive available, concurrent rebuilds may race", "error", err)

	return NoLock{}
}

// probeSpin checks that exclusive-create works in the directory of path.
func probeSpin(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}

	name := file.Name()
	_ = file.Close()

	return os.Remove(name)
}

// NoLock is the degraded mode: every Acquire succeeds immediately.
type NoLock struct{}

// Kind implements Lock.
func (NoLock) Kind() Kind {
	return KindNone
}

// Acquire implements Lock.
//
//nolint:ireturn // Handle is the contract.
func (NoLock) Acquire(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return noHandle{}, nil
}

type noHandle struct{}

func (noHandle) Release() error {
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
