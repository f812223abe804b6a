package rebuilder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/fsutil"
	"github.com/oshokin/snaplauncher/internal/logger"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
	"github.com/oshokin/snaplauncher/internal/service/common"
)

// ArtifactMode is the permission of the installed artifact.
const ArtifactMode os.FileMode = 0o755

const dirMode os.FileMode = 0o755

// Options are inputs accepted by New.
type Options struct {
	// Directory locates the cache and the tool sources.
	Directory snapshot.Directory
	// Commands are the argv templates of the external steps.
	Commands config.Commands
	// Runner executes the external steps.
	Runner common.Runner
	// Stamps records the compile key after a successful build.
	Stamps stamp.Repository
	// Retry bounds dependency resolution.
	Retry config.Retry
	// Env is added to the environment of every step.
	Env []string
	// ExtraArgs replace the {extra_args} placeholder.
	ExtraArgs []string
	// Verbose streams compile output instead of discarding its stdout.
	Verbose bool
}

// Rebuilder regenerates the cached artifact. Callers hold the rebuild lock,
// or run unsynchronized when no lock is available.
type Rebuilder struct {
	dir       snapshot.Directory
	commands  config.Commands
	runner    common.Runner
	stamps    stamp.Repository
	retry     config.Retry
	env       []string
	extraArgs []string
	verbose   bool
}

// New creates a Rebuilder.
func New(opts *Options) *Rebuilder {
	retry := opts.Retry
	if retry.Attempts <= 0 {
		retry.Attempts = config.DefaultRetryAttempts
	}

	return &Rebuilder{
		dir:       opts.Directory,
		commands:  opts.Commands,
		runner:    opts.Runner,
		stamps:    opts.Stamps,
		retry:     retry,
		env:       opts.Env,
		extraArgs: opts.ExtraArgs,
		verbose:   opts.Verbose,
	}
}

// Rebuild runs every step in order and stops at the first failure:
// 1) Remove version markers of the previous build.
// 2) Resolve dependencies, retrying with a fixed delay.
// 3) Bootstrap the toolchain.
// 4) Compile into a staging file.
// 5) Swap the staging file in as the artifact.
// 6) Record key in the stamp.
func (r *Rebuilder) Rebuild(ctx context.Context, key string) error {
	ctx = logger.WithName(ctx, "rebuilder")

	logger.InfoKV(ctx, "Rebuilding the tool", "root", r.dir.Root(), "key", key)

	if err := r.invalidateVersionMarkers(ctx); err != nil {
		return fmt.Errorf("invalidate version markers: %w", err)
	}

	if err := r.resolveDependencies(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Bootstrapping the toolchain")

	bootstrap, err := r.command(r.commands.Bootstrap, r.dir.Root(), false)
	if err != nil {
		return fmt.Errorf("bootstrap toolchain: %w", err)
	}

	if err = r.runner.Run(ctx, bootstrap); err != nil {
		return fmt.Errorf("bootstrap toolchain: %w", err)
	}

	if err = r.compile(ctx); err != nil {
		return err
	}

	if err = r.stamps.Save(ctx, key); err != nil {
		return fmt.Errorf("update stamp: %w", err)
	}

	logger.InfoKV(ctx, "Tool rebuilt", "artifact", r.dir.Artifact())

	return nil
}

// invalidateVersionMarkers removes files reporting the version of the previous build.
func (r *Rebuilder) invalidateVersionMarkers(ctx context.Context) error {
	for _, marker := range r.dir.VersionMarkers() {
		err := os.Remove(marker)
		if err == nil {
			logger.DebugKV(ctx, "Removed version marker", "path", marker)
			continue
		}

		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}

// resolveDependencies runs the dependency step until it succeeds or the attempts run out.
func (r *Rebuilder) resolveDependencies(ctx context.Context) error {
	cmd, err := r.command(r.commands.ResolveDependencies, r.dir.ToolDir(), false)
	if err != nil {
		return fmt.Errorf("resolve dependencies: %w", err)
	}

	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		logger.DebugKV(ctx, "Resolving dependencies", "attempt", attempt, "command", cmd.String())

		if err = r.runner.Run(ctx, cmd); err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		remaining := r.retry.Attempts - attempt
		if remaining == 0 {
			break
		}

		logger.WarnKV(ctx, "Unable to resolve dependencies, retrying",
			"error", err, "delay", r.retry.Delay.String(), "tries_left", remaining)

		if err = sleep(ctx, r.retry.Delay); err != nil {
			return err
		}
	}

	logger.ErrorKV(ctx, "Dependency resolution failed on every attempt", "attempts", r.retry.Attempts)

	return &RetryExhaustedError{Attempts: r.retry.Attempts, Err: err}
}

// compile builds into the staging file and swaps it in as the artifact.
func (r *Rebuilder) compile(ctx context.Context) error {
	staging := r.dir.Staging()

	compile, err := r.command(r.commands.Compile, r.dir.ToolDir(), !r.verbose)
	if err != nil {
		return fmt.Errorf("compile tool: %w", err)
	}

	if err = os.MkdirAll(r.dir.CacheDir(), dirMode); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if err = os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous staging file: %w", err)
	}

	defer func() {
		_ = os.Remove(staging)
	}()

	logger.Info(ctx, "Compiling the tool")

	if err = r.runner.Run(ctx, compile); err != nil {
		return fmt.Errorf("compile tool: %w", err)
	}

	data, err := os.ReadFile(staging)
	if err != nil {
		return fmt.Errorf("read compiled tool: %w", err)
	}

	if err = fsutil.ReplaceFile(r.dir.Artifact(), data, ArtifactMode); err != nil {
		return fmt.Errorf("install compiled tool: %w", err)
	}

	return nil
}

// command expands a template into a runnable command.
func (r *Rebuilder) command(template []string, dir string, quiet bool) (common.Command, error) {
	argv := common.Expand(template, common.Vars{
		common.VarRoot:       {r.dir.Root()},
		common.VarToolDir:    {r.dir.ToolDir()},
		common.VarEntryPoint: {r.dir.EntryPoint()},
		common.VarArtifact:   {r.dir.Artifact()},
		common.VarOutput:     {r.dir.Staging()},
		common.VarExtraArgs:  r.extraArgs,
	})

	if len(argv) == 0 || argv[0] == "" {
		return common.Command{}, fmt.Errorf("%w: %q", ErrEmptyCommand, template)
	}

	return common.Command{
		Name:  common.ProgramPath(r.dir.Root(), argv[0]),
		Args:  argv[1:],
		Dir:   dir,
		Env:   r.env,
		Quiet: quiet,
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
