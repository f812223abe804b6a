package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oshokin/snaplauncher/internal/logger"
)

var (
	// errBusy is returned by tryLock when another descriptor holds the lock.
	errBusy = errors.New("lock is held elsewhere")
	// errAdvisoryUnsupported is returned where the platform has no advisory locks.
	errAdvisoryUnsupported = errors.New("advisory file locks are not supported on this platform")
)

// AdvisoryFileLock takes an exclusive advisory lock on an open descriptor.
// The kernel drops it when the descriptor closes, including when the process dies.
type AdvisoryFileLock struct {
	// path is the lock target. The file is created if needed and never removed.
	path string
	// interval is the pause between two non-blocking attempts.
	interval time.Duration
}

// NewAdvisory returns an advisory lock on path.
func NewAdvisory(path string, interval time.Duration) *AdvisoryFileLock {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &AdvisoryFileLock{
		path:     path,
		interval: interval,
	}
}

// Kind implements Lock.
func (l *AdvisoryFileLock) Kind() Kind {
	return KindAdvisory
}

// Acquire implements Lock. Attempts are non-blocking so cancellation is honored.
//
//nolint:ireturn // Handle is the contract.
func (l *AdvisoryFileLock) Acquire(ctx context.Context) (Handle, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	waiting := false

	for {
		err = tryLock(file)
		if err == nil {
			return &advisoryHandle{file: file}, nil
		}

		if !errors.Is(err, errBusy) {
			_ = file.Close()
			return nil, fmt.Errorf("lock %s: %w", l.path, err)
		}

		if !waiting {
			waiting = true

			logger.InfoKV(ctx, "Waiting for another process to finish rebuilding", "lock", l.path)
		}

		if err = sleep(ctx, l.interval); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
}

// advisoryHandle owns the locked descriptor.
type advisoryHandle struct {
	file *os.File
	once sync.Once
	err  error
}

// Release unlocks and closes the descriptor.
func (h *advisoryHandle) Release() error {
	h.once.Do(func() {
		unlockErr := unlock(h.file)
		closeErr := h.file.Close()
		h.err = errors.Join(unlockErr, closeErr)
	})

	return h.err
}

// probeAdvisory checks that advisory locks work on path. A lock held by
// another process proves support as well.
func probeAdvisory(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	err = tryLock(file)
	if errors.Is(err, errBusy) {
		return nil
	}

	if err != nil {
		return err
	}

	return unlock(file)
}
