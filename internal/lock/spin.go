package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/snaplauncher/internal/logger"
)

// unreadableGrace is how long a lock file without a readable PID is assumed
// to be mid-creation rather than abandoned.
const unreadableGrace = 5 * time.Second

// SpinFileLock is held while a PID file created with exclusive-create exists.
// Contenders retry at a fixed interval. A file naming a process that no longer
// runs is removed, so a crashed holder cannot block later invocations forever.
type SpinFileLock struct {
	// path is the PID file.
	path string
	// interval is the pause between two create attempts.
	interval time.Duration
	// alive reports whether pid names a running process.
	alive func(pid int) bool
}

// NewSpin returns a spin lock on path.
func NewSpin(path string, interval time.Duration) *SpinFileLock {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &SpinFileLock{
		path:     path,
		interval: interval,
		alive:    processAlive,
	}
}

// Kind implements Lock.
func (l *SpinFileLock) Kind() Kind {
	return KindSpin
}

// Acquire implements Lock.
//
//nolint:ireturn // Handle is the contract.
func (l *SpinFileLock) Acquire(ctx context.Context) (Handle, error) {
	pid := os.Getpid()
	waiting := false

	for {
		err := l.create(pid)
		if err == nil {
			return &spinHandle{path: l.path, pid: pid}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file %s: %w", l.path, err)
		}

		if l.removeIfStale(ctx) {
			continue
		}

		if !waiting {
			waiting = true

			logger.InfoKV(ctx, "Waiting for another process to finish rebuilding", "lock", l.path)
		}

		if err = sleep(ctx, l.interval); err != nil {
			return nil, err
		}
	}
}

// create writes pid into a new lock file; it fails with os.ErrExist when held.
func (l *SpinFileLock) create(pid int) error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}

	_, writeErr := file.WriteString(strconv.Itoa(pid))
	closeErr := file.Close()

	if err = errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(l.path)
		return err
	}

	return nil
}

// removeIfStale deletes the lock file when its owner is gone and reports
// whether the caller should retry immediately.
func (l *SpinFileLock) removeIfStale(ctx context.Context) bool {
	contents, err := os.ReadFile(l.path)
	if err != nil {
		// Released between our create attempt and this read.
		return errors.Is(err, os.ErrNotExist)
	}

	owner, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		info, statErr := os.Stat(l.path)
		if statErr != nil || time.Since(info.ModTime()) < unreadableGrace {
			return false
		}
	} else if owner == os.Getpid() || l.alive(owner) {
		return false
	}

	// Only remove the file we inspected, not one a faster contender just created.
	current, err := os.ReadFile(l.path)
	if err != nil || string(current) != string(contents) {
		return false
	}

	logger.WarnKV(ctx, "Removing lock file left by a process that is gone", "lock", l.path, "pid", strings.TrimSpace(string(contents)))

	return os.Remove(l.path) == nil
}

// spinHandle removes the PID file on release.
type spinHandle struct {
	path string
	pid  int
	once sync.Once
	err  error
}

// Release removes the lock file if it still carries our PID.
func (h *spinHandle) Release() error {
	h.once.Do(func() {
		contents, err := os.ReadFile(h.path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				h.err = err
			}

			return
		}

		if strings.TrimSpace(string(contents)) != strconv.Itoa(h.pid) {
			return
		}

		if err = os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = err
		}
	})

	return h.err
}

// processAlive asks the process table whether pid exists.
// Lookup failures count as alive so a lock is never broken on doubt.
func processAlive(pid int) bool {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
