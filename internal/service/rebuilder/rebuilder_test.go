package rebuilder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
	"github.com/oshokin/snaplauncher/internal/service/common"
)

var errFlaky = errors.New("network unreachable")

// fakeRunner records commands and fails dependency resolution a set number of times.
// The compile step writes a fake binary to the last argument, which is {output}.
type fakeRunner struct {
	mu           sync.Mutex
	calls        []common.Command
	resolveFails int
	compileErr   error
}

func (r *fakeRunner) Run(_ context.Context, cmd common.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, cmd)

	switch step(cmd) {
	case "download":
		if r.resolveFails > 0 {
			r.resolveFails--

			return errFlaky
		}
	case "build":
		if r.compileErr != nil {
			return r.compileErr
		}

		output := cmd.Args[len(cmd.Args)-2]

		return os.WriteFile(output, []byte("#!/bin/sh\nexit 0\n"), 0o600)
	}

	return nil
}

func (r *fakeRunner) Output(ctx context.Context, cmd common.Command) ([]byte, error) {
	return nil, r.Run(ctx, cmd)
}

func (r *fakeRunner) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]string, 0, len(r.calls))
	for _, cmd := range r.calls {
		steps = append(steps, step(cmd))
	}

	return steps
}

func step(cmd common.Command) string {
	if len(cmd.Args) == 0 {
		return cmd.Name
	}

	if cmd.Args[0] == "mod" {
		return cmd.Args[1]
	}

	return cmd.Args[0]
}

func newTestRebuilder(t *testing.T, runner common.Runner, extraArgs ...string) (*Rebuilder, snapshot.Directory, *stamp.FileRepository) {
	t.Helper()

	return newTestRebuilderWithCommands(t, runner, config.Default().Commands, extraArgs...)
}

func newTestRebuilderWithCommands(
	t *testing.T,
	runner common.Runner,
	commands config.Commands,
	extraArgs ...string,
) (*Rebuilder, snapshot.Directory, *stamp.FileRepository) {
	t.Helper()

	cfg := config.Default()
	cfg.Commands = commands
	dir := snapshot.NewDirectory(t.TempDir(), cfg.Layout)
	stamps := stamp.NewFileRepository(dir.Stamp())

	require.NoError(t, os.MkdirAll(dir.ToolDir(), 0o755))

	return New(&Options{
		Directory: dir,
		Commands:  cfg.Commands,
		Runner:    runner,
		Stamps:    stamps,
		Retry:     config.Retry{Attempts: cfg.Retry.Attempts},
		Env:       []string{"GOMODCACHE=/cache"},
		ExtraArgs: extraArgs,
	}), dir, stamps
}

// TestRebuildRunsStepsInOrder checks the full sequence and the resulting cache state.
func TestRebuildRunsStepsInOrder(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	r, dir, stamps := newTestRebuilder(t, runner, "-race")

	require.NoError(t, r.Rebuild(context.Background(), "abc123"))
	require.Equal(t, []string{"download", "version", "build"}, runner.steps())

	key, err := stamps.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", key)

	info, err := os.Stat(dir.Artifact())
	require.NoError(t, err)
	require.Equal(t, ArtifactMode, info.Mode().Perm())

	_, err = os.Stat(dir.Staging())
	require.ErrorIs(t, err, os.ErrNotExist)

	build := runner.calls[2]
	require.Equal(t, []string{"build", "-race", "-o", dir.Staging(), dir.EntryPoint()}, build.Args)
	require.Equal(t, dir.ToolDir(), build.Dir)
	require.True(t, build.Quiet)
	require.Equal(t, []string{"GOMODCACHE=/cache"}, build.Env)

	require.Equal(t, dir.ToolDir(), runner.calls[0].Dir)
	require.Equal(t, dir.Root(), runner.calls[1].Dir)
}

// TestRebuildRetriesDependencyResolution checks that k failures lead to k+1 attempts.
func TestRebuildRetriesDependencyResolution(t *testing.T) {
	t.Parallel()

	for _, failures := range []int{0, 1, 3, 9} {
		runner := &fakeRunner{resolveFails: failures}
		r, _, _ := newTestRebuilder(t, runner)

		require.NoError(t, r.Rebuild(context.Background(), "key"))

		var downloads int
		for _, s := range runner.steps() {
			if s == "download" {
				downloads++
			}
		}

		require.Equal(t, failures+1, downloads)
	}
}

// TestRebuildGivesUpAfterAllAttempts checks the retry bound and that nothing else runs.
func TestRebuildGivesUpAfterAllAttempts(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resolveFails: 1000}
	r, dir, _ := newTestRebuilder(t, runner)

	err := r.Rebuild(context.Background(), "key")

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, config.DefaultRetryAttempts, exhausted.Attempts)
	require.ErrorIs(t, err, errFlaky)
	require.Len(t, runner.calls, config.DefaultRetryAttempts)

	_, err = os.Stat(dir.Stamp())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRebuildKeepsStampOnCompileFailure ensures a failed build is not recorded as current.
func TestRebuildKeepsStampOnCompileFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{compileErr: errors.New("syntax error")}
	r, _, stamps := newTestRebuilder(t, runner)

	require.NoError(t, stamps.Save(context.Background(), "old"))
	require.Error(t, r.Rebuild(context.Background(), "new"))

	key, err := stamps.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "old", key)
}

// TestRebuildRemovesVersionMarkers checks that stale version reports are invalidated.
func TestRebuildRemovesVersionMarkers(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	r, dir, _ := newTestRebuilder(t, runner)

	markers := dir.VersionMarkers()
	require.NotEmpty(t, markers)
	require.NoError(t, os.MkdirAll(filepath.Dir(markers[len(markers)-1]), 0o755))
	require.NoError(t, os.WriteFile(markers[len(markers)-1], []byte(`{"version":"1"}`), 0o600))

	require.NoError(t, r.Rebuild(context.Background(), "key"))

	for _, marker := range markers {
		_, err := os.Stat(marker)
		require.ErrorIs(t, err, os.ErrNotExist)
	}
}

// TestRebuildHonorsCancellation checks that a cancelled context stops the retry loop.
func TestRebuildHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{resolveFails: 1000}
	r, _, _ := newTestRebuilder(t, runner)

	require.ErrorIs(t, r.Rebuild(ctx, "key"), context.Canceled)
	require.Len(t, runner.calls, 1)
}

// TestRebuildRejectsTemplateExpandingToNothing checks that a program slot
// filled only by empty extra arguments fails instead of running anything.
func TestRebuildRejectsTemplateExpandingToNothing(t *testing.T) {
	t.Parallel()

	commands := config.Default().Commands
	commands.Bootstrap = []string{"{extra_args}"}

	runner := &fakeRunner{}
	r, _, stamps := newTestRebuilderWithCommands(t, runner, commands)

	var err error

	require.NotPanics(t, func() {
		err = r.Rebuild(context.Background(), "key")
	})
	require.ErrorIs(t, err, ErrEmptyCommand)
	require.Equal(t, []string{"download"}, runner.steps())

	_, err = stamps.Load(context.Background())
	require.ErrorIs(t, err, stamp.ErrNotFound)
}
