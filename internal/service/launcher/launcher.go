package launcher

import (
	"context"
	"errors"

	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/lock"
	"github.com/oshokin/snaplauncher/internal/logger"
	"github.com/oshokin/snaplauncher/internal/service/common"
	"github.com/oshokin/snaplauncher/internal/service/delegator"
)

// FreshnessChecker evaluates the cache.
type FreshnessChecker interface {
	Check(ctx context.Context) (snapshot.Verdict, error)
}

// Rebuilder regenerates the artifact and records key.
type Rebuilder interface {
	Rebuild(ctx context.Context, key string) error
}

// Dependencies are the collaborators of a Launcher.
type Dependencies struct {
	// Directory locates the artifact.
	Directory snapshot.Directory
	// Checker decides whether a rebuild is needed.
	Checker FreshnessChecker
	// SelectLock returns the rebuild lock. It is only called when a rebuild is needed.
	SelectLock func(ctx context.Context) lock.Lock
	// Rebuilder regenerates the artifact.
	Rebuilder Rebuilder
	// Delegator hands control to the artifact.
	Delegator delegator.Delegator
	// Delegate is the argv template of the tool launch.
	Delegate []string
	// ExtraArgs replace the {extra_args} placeholder.
	ExtraArgs []string
	// Env holds KEY=VALUE pairs added to the tool environment.
	Env []string
}

// Launcher sequences freshness check, locked rebuild and delegation.
type Launcher struct {
	deps *Dependencies
}

// New creates a Launcher.
func New(deps *Dependencies) *Launcher {
	return &Launcher{deps: deps}
}

// Launch makes sure the artifact is fresh and delegates args to it.
// The returned code is the tool's exit code and only meaningful without error.
func (l *Launcher) Launch(ctx context.Context, args []string) (int, error) {
	verdict, err := l.deps.Checker.Check(ctx)
	if err != nil {
		return 0, err
	}

	if !verdict.Fresh() {
		logger.InfoKV(ctx, "Cached tool is out of date", "reasons", verdict.Reasons)

		if err = l.rebuild(ctx, false); err != nil {
			return 0, err
		}
	}

	return l.deps.Delegator.Delegate(ctx, l.Invocation(args))
}

// Rebuild regenerates the artifact under the lock even when it looks fresh.
func (l *Launcher) Rebuild(ctx context.Context) error {
	return l.rebuild(ctx, true)
}

// Invocation expands the delegate template and appends args unmodified.
func (l *Launcher) Invocation(args []string) delegator.Invocation {
	dir := l.deps.Directory

	argv := common.Expand(l.deps.Delegate, common.Vars{
		common.VarRoot:       {dir.Root()},
		common.VarToolDir:    {dir.ToolDir()},
		common.VarEntryPoint: {dir.EntryPoint()},
		common.VarArtifact:   {dir.Artifact()},
		common.VarExtraArgs:  l.deps.ExtraArgs,
	})

	if len(argv) == 0 {
		// Nothing to run; the delegator reports the empty program.
		return delegator.Invocation{Args: args, Env: delegator.Environ(l.deps.Env)}
	}

	toolArgs := make([]string, 0, len(argv)-1+len(args))
	toolArgs = append(toolArgs, argv[1:]...)
	toolArgs = append(toolArgs, args...)

	return delegator.Invocation{
		Path: common.ProgramPath(dir.Root(), argv[0]),
		Args: toolArgs,
		Env:  delegator.Environ(l.deps.Env),
	}
}

// rebuild takes the lock, evaluates freshness again and rebuilds when still
// needed or forced. Lock failures degrade to an unsynchronized rebuild.
func (l *Launcher) rebuild(ctx context.Context, force bool) error {
	rebuildLock := l.deps.SelectLock(ctx)

	handle, err := rebuildLock.Acquire(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.WarnKV(ctx, "Unable to take the rebuild lock, rebuilding without it",
			"kind", rebuildLock.Kind(), "error", err)
	} else {
		defer func() {
			if releaseErr := handle.Release(); releaseErr != nil {
				logger.WarnKV(ctx, "Unable to release the rebuild lock", "error", releaseErr)
			}
		}()
	}

	// Another invocation may have rebuilt the tool while this one was waiting.
	verdict, err := l.deps.Checker.Check(ctx)
	if err != nil {
		return err
	}

	if verdict.Fresh() && !force {
		logger.Info(ctx, "Tool was rebuilt by another invocation")
		return nil
	}

	if err = l.deps.Rebuilder.Rebuild(ctx, verdict.Key); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Rebuild interrupted")
		}

		return err
	}

	return nil
}
