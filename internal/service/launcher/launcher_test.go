package launcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/lock"
	"github.com/oshokin/snaplauncher/internal/service/delegator"
)

var (
	fresh = snapshot.Verdict{Key: "rev2"}
	stale = snapshot.Verdict{Key: "rev2", Reasons: []snapshot.Reason{snapshot.ReasonManifestNewer}}
)

// recorder collects the order in which collaborators are used.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

type fakeChecker struct {
	rec      *recorder
	verdicts []snapshot.Verdict
	err      error
}

func (c *fakeChecker) Check(context.Context) (snapshot.Verdict, error) {
	c.rec.add("check")

	if c.err != nil {
		return snapshot.Verdict{}, c.err
	}

	verdict := c.verdicts[0]
	if len(c.verdicts) > 1 {
		c.verdicts = c.verdicts[1:]
	}

	return verdict, nil
}

type fakeLock struct {
	rec *recorder
	err error
}

func (l *fakeLock) Kind() lock.Kind {
	return lock.KindAdvisory
}

//nolint:ireturn // Implements lock.Lock.
func (l *fakeLock) Acquire(context.Context) (lock.Handle, error) {
	l.rec.add("acquire")

	if l.err != nil {
		return nil, l.err
	}

	return fakeHandle{rec: l.rec}, nil
}

type fakeHandle struct {
	rec *recorder
}

func (h fakeHandle) Release() error {
	h.rec.add("release")
	return nil
}

type fakeRebuilder struct {
	rec  *recorder
	keys []string
	err  error
}

func (r *fakeRebuilder) Rebuild(_ context.Context, key string) error {
	r.rec.add("rebuild")
	r.keys = append(r.keys, key)

	return r.err
}

type fakeDelegator struct {
	rec  *recorder
	inv  delegator.Invocation
	code int
}

func (d *fakeDelegator) Delegate(_ context.Context, inv delegator.Invocation) (int, error) {
	d.rec.add("delegate")
	d.inv = inv

	return d.code, nil
}

type fixture struct {
	rec       *recorder
	checker   *fakeChecker
	lock      *fakeLock
	rebuilder *fakeRebuilder
	delegator *fakeDelegator
	launcher  *Launcher
	dir       snapshot.Directory
}

func newFixture(t *testing.T, verdicts ...snapshot.Verdict) *fixture {
	t.Helper()

	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		checker:   &fakeChecker{rec: rec, verdicts: verdicts},
		lock:      &fakeLock{rec: rec},
		rebuilder: &fakeRebuilder{rec: rec},
		delegator: &fakeDelegator{rec: rec, code: 17},
		dir:       snapshot.NewDirectory("/opt/tool", config.Default().Layout),
	}

	f.launcher = New(&Dependencies{
		Directory: f.dir,
		Checker:   f.checker,
		SelectLock: func(context.Context) lock.Lock {
			rec.add("select")
			return f.lock
		},
		Rebuilder: f.rebuilder,
		Delegator: f.delegator,
		Delegate:  []string{"{artifact}", "{extra_args}", "--packages={root}/packages"},
		ExtraArgs: []string{"-v"},
		Env:       []string{"GOMODCACHE=/cache"},
	})

	return f
}

// TestLaunchFreshSkipsRebuild checks that a fresh cache goes straight to delegation.
func TestLaunchFreshSkipsRebuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fresh)

	code, err := f.launcher.Launch(context.Background(), []string{"run", "--verbose", "a b"})
	require.NoError(t, err)
	require.Equal(t, 17, code)
	require.Equal(t, []string{"check", "delegate"}, f.rec.events)

	require.Equal(t, f.dir.Artifact(), f.delegator.inv.Path)
	require.Equal(t, []string{"-v", "--packages=/opt/tool/packages", "run", "--verbose", "a b"}, f.delegator.inv.Args)
	require.Contains(t, f.delegator.inv.Env, "GOMODCACHE=/cache")
}

// TestLaunchStaleRebuildsUnderLock checks the locked rebuild path.
func TestLaunchStaleRebuildsUnderLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stale, stale)

	code, err := f.launcher.Launch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 17, code)
	require.Equal(t, []string{"check", "select", "acquire", "check", "rebuild", "release", "delegate"}, f.rec.events)
	require.Equal(t, []string{"rev2"}, f.rebuilder.keys)
}

// TestLaunchReusesConcurrentRebuild checks the second check made under the lock.
func TestLaunchReusesConcurrentRebuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stale, fresh)

	_, err := f.launcher.Launch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"check", "select", "acquire", "check", "release", "delegate"}, f.rec.events)
	require.Empty(t, f.rebuilder.keys)
}

// TestLaunchDegradesWithoutLock checks that lock failures are not fatal.
func TestLaunchDegradesWithoutLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stale, stale)
	f.lock.err = errors.New("no locks on this filesystem")

	code, err := f.launcher.Launch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 17, code)
	require.Equal(t, []string{"check", "select", "acquire", "check", "rebuild", "delegate"}, f.rec.events)
}

// TestLaunchAbortsWhenCancelledWhileWaiting checks that an interrupt while waiting is fatal.
func TestLaunchAbortsWhenCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t, stale)
	f.lock.err = context.Canceled

	_, err := f.launcher.Launch(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotContains(t, f.rec.events, "rebuild")
	require.NotContains(t, f.rec.events, "delegate")
}

// TestLaunchRebuildFailureIsFatal checks that no delegation follows a failed rebuild
// and that the lock is still released.
func TestLaunchRebuildFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, stale, stale)
	f.rebuilder.err = errors.New("compile failed")

	_, err := f.launcher.Launch(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, []string{"check", "select", "acquire", "check", "rebuild", "release"}, f.rec.events)
}

// TestLaunchRevisionFailureIsFatal checks that an unknown revision stops everything.
func TestLaunchRevisionFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fresh)
	f.checker.err = errors.New("not a git repository")

	_, err := f.launcher.Launch(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, []string{"check"}, f.rec.events)
}

// TestForcedRebuild checks that Rebuild ignores a fresh verdict.
func TestForcedRebuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fresh)

	require.NoError(t, f.launcher.Rebuild(context.Background()))
	require.Equal(t, []string{"select", "acquire", "check", "rebuild", "release"}, f.rec.events)
	require.Equal(t, []string{"rev2"}, f.rebuilder.keys)
}

// TestFindRootOverride checks that the root override wins over the launcher location.
func TestFindRootOverride(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	found, err := FindRoot("/nonexistent/bin/snaplauncher", &config.Environment{RootOverride: root})
	require.NoError(t, err)
	require.Equal(t, root, found)

	_, err = FindRoot("/nonexistent/bin/snaplauncher", &config.Environment{})
	require.Error(t, err)
}
