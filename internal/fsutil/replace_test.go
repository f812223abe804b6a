package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReplaceFileCreatesAndOverwrites covers a new target and an existing one.
func TestReplaceFileCreatesAndOverwrites(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "bin", "cache")
	path := filepath.Join(dir, "tool.bin")

	require.NoError(t, ReplaceFile(path, []byte("first"), 0o755))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(contents))

	require.NoError(t, ReplaceFile(path, []byte("second"), 0o644))

	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(contents))

	if runtime.GOOS != "windows" {
		info, statErr := os.Stat(path)
		require.NoError(t, statErr)
		require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files expected")
}

// TestReplaceFileNeverLeavesTargetMissing reads the target while it is being
// replaced over and over; every read must find a complete file.
func TestReplaceFileNeverLeavesTargetMissing(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("open files block renames on windows")
	}

	path := filepath.Join(t.TempDir(), "tool.stamp")
	require.NoError(t, ReplaceFile(path, []byte("aaaa"), 0o644))

	var (
		stop     atomic.Bool
		failures atomic.Int64
		done     = make(chan struct{})
	)

	go func() {
		defer close(done)

		for !stop.Load() {
			contents, err := os.ReadFile(path)
			if err != nil || (string(contents) != "aaaa" && string(contents) != "bbbb") {
				failures.Add(1)
			}
		}
	}()

	for i := range 500 {
		payload := "aaaa"
		if i%2 == 1 {
			payload = "bbbb"
		}

		require.NoError(t, ReplaceFile(path, []byte(payload), 0o644))
	}

	stop.Store(true)
	<-done

	require.Zero(t, failures.Load())
}

// TestReplaceFileReportsUnwritableDirectory checks the error path.
func TestReplaceFileReportsUnwritableDirectory(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	require.Error(t, ReplaceFile(filepath.Join(blocker, "tool.bin"), []byte("x"), 0o755))
}
