package cachestate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
)

type staticRevision struct {
	revision string
	err      error
}

func (s staticRevision) Revision(context.Context) (string, error) {
	return s.revision, s.err
}

// freshInstallation lays out a cache that satisfies every freshness condition.
func freshInstallation(t *testing.T) snapshot.Directory {
	t.Helper()

	dir := snapshot.NewDirectory(t.TempDir(), config.Default().Layout)

	require.NoError(t, os.MkdirAll(dir.CacheDir(), 0o755))
	require.NoError(t, os.MkdirAll(dir.ToolDir(), 0o755))
	require.NoError(t, os.WriteFile(dir.Artifact(), []byte("binary"), 0o755))
	require.NoError(t, os.WriteFile(dir.Stamp(), []byte("abc123"), 0o644))
	require.NoError(t, os.WriteFile(dir.Manifest(), []byte("module tool\n"), 0o644))
	require.NoError(t, os.WriteFile(dir.ManifestLock(), nil, 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(dir.Manifest(), old, old))

	return dir
}

func check(t *testing.T, dir snapshot.Directory, toolArgs string) snapshot.Verdict {
	t.Helper()

	checker := NewChecker(dir, staticRevision{revision: "abc123"}, stamp.NewFileRepository(dir.Stamp()), toolArgs)

	verdict, err := checker.Check(context.Background())
	require.NoError(t, err)

	return verdict
}

// TestCheckFresh reports a fully populated cache as fresh.
func TestCheckFresh(t *testing.T) {
	t.Parallel()

	verdict := check(t, freshInstallation(t), "")
	require.True(t, verdict.Fresh())
	require.Equal(t, "abc123", verdict.Key)
}

// TestCheckEachCondition breaks one condition at a time.
func TestCheckEachCondition(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		breakIt func(t *testing.T, dir snapshot.Directory)
		reason  snapshot.Reason
	}{
		"artifact absent": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.Remove(dir.Artifact()))
			},
			reason: snapshot.ReasonArtifactMissing,
		},
		"artifact is a directory": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.Remove(dir.Artifact()))
				require.NoError(t, os.Mkdir(dir.Artifact(), 0o755))
			},
			reason: snapshot.ReasonArtifactMissing,
		},
		"stamp absent": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.Remove(dir.Stamp()))
			},
			reason: snapshot.ReasonStampMissing,
		},
		"stamp empty": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.WriteFile(dir.Stamp(), nil, 0o644))
			},
			reason: snapshot.ReasonStampMissing,
		},
		"stamp from another revision": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.WriteFile(dir.Stamp(), []byte("def456"), 0o644))
			},
			reason: snapshot.ReasonStampMismatch,
		},
		"manifest newer than lock": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()

				now := time.Now()
				require.NoError(t, os.Chtimes(dir.Manifest(), now, now))

				old := now.Add(-time.Minute)
				require.NoError(t, os.Chtimes(dir.ManifestLock(), old, old))
			},
			reason: snapshot.ReasonManifestNewer,
		},
		"lock missing": {
			breakIt: func(t *testing.T, dir snapshot.Directory) {
				t.Helper()
				require.NoError(t, os.Remove(dir.ManifestLock()))
			},
			reason: snapshot.ReasonManifestNewer,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := freshInstallation(t)
			tc.breakIt(t, dir)

			verdict := check(t, dir, "")
			require.False(t, verdict.Fresh())
			require.Equal(t, []snapshot.Reason{tc.reason}, verdict.Reasons)
		})
	}
}

// TestCheckManifestMissing keeps the cache fresh when there is no manifest at all.
func TestCheckManifestMissing(t *testing.T) {
	t.Parallel()

	dir := freshInstallation(t)
	require.NoError(t, os.Remove(dir.Manifest()))
	require.NoError(t, os.Remove(dir.ManifestLock()))

	require.True(t, check(t, dir, "").Fresh())
}

// TestCheckEqualTimesAreFresh ensures only a strictly newer manifest counts.
func TestCheckEqualTimesAreFresh(t *testing.T) {
	t.Parallel()

	dir := freshInstallation(t)
	same := time.Now().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, os.Chtimes(dir.Manifest(), same, same))
	require.NoError(t, os.Chtimes(dir.ManifestLock(), same, same))

	require.True(t, check(t, dir, "").Fresh())
}

// TestCheckToolArgsChangeKey makes extra tool arguments part of the compile key.
func TestCheckToolArgsChangeKey(t *testing.T) {
	t.Parallel()

	dir := freshInstallation(t)

	verdict := check(t, dir, "-race")
	require.Equal(t, "abc123:-race", verdict.Key)
	require.Equal(t, []snapshot.Reason{snapshot.ReasonStampMismatch}, verdict.Reasons)
}

// TestCheckUnknownRevision propagates a revision lookup failure.
func TestCheckUnknownRevision(t *testing.T) {
	t.Parallel()

	dir := freshInstallation(t)
	lookupErr := errors.New("no HEAD")

	checker := NewChecker(dir, staticRevision{err: lookupErr}, stamp.NewFileRepository(dir.Stamp()), "")

	_, err := checker.Check(context.Background())
	require.ErrorIs(t, err, lookupErr)

	// The cache is only read.
	_, statErr := os.Stat(filepath.Join(dir.CacheDir(), ".rebuild.lock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}
