package launcher

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap/zapcore"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/lock"
	"github.com/oshokin/snaplauncher/internal/logger"
	"github.com/oshokin/snaplauncher/internal/pathresolve"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
	"github.com/oshokin/snaplauncher/internal/service/cachestate"
	"github.com/oshokin/snaplauncher/internal/service/common"
	"github.com/oshokin/snaplauncher/internal/service/delegator"
	"github.com/oshokin/snaplauncher/internal/service/rebuilder"
	"github.com/oshokin/snaplauncher/internal/vcs"
)

// Installation is an opened installation root with its settings and collaborators.
type Installation struct {
	// Root is the absolute installation root.
	Root string
	// Config holds the settings read from the root.
	Config *config.Config
	// Env is the launcher-relevant process environment.
	Env *config.Environment
	// Directory locates the cache and the tool sources.
	Directory snapshot.Directory
	// Git answers revision questions about the root.
	Git *vcs.Git
	// Stamps persists the compile key.
	Stamps *stamp.FileRepository
	// Runner executes external steps.
	Runner common.Runner
	// Delegator hands control to the tool. Nil means the platform default.
	Delegator delegator.Delegator
}

// FindRoot returns the installation root: the override when set, otherwise the
// parent of the directory holding the physical launcher file.
func FindRoot(invoked string, env *config.Environment) (string, error) {
	if env.RootOverride != "" {
		root, err := filepath.Abs(env.RootOverride)
		if err != nil {
			return "", fmt.Errorf("resolve root override: %w", err)
		}

		return root, nil
	}

	launcher, err := pathresolve.Resolve(pathresolve.InvokedPath(invoked))
	if err != nil {
		return "", err
	}

	return pathresolve.InstallationRoot(launcher), nil
}

// Open loads the settings of root and checks the prerequisites.
func Open(ctx context.Context, root string, env *config.Environment) (*Installation, error) {
	// Load settings stored next to the sources, falling back to defaults.
	cfg, err := config.Load(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	dir := snapshot.NewDirectory(root, cfg.Layout)
	runner := common.NewExecRunner()
	git := vcs.NewGit(root, runner, vcs.WithMinVersion(cfg.MinGitVersion))

	// Refuse to do anything without git or outside a checkout.
	if err = git.CheckPrerequisites(ctx); err != nil {
		return nil, err
	}

	return &Installation{
		Root:      root,
		Config:    cfg,
		Env:       env,
		Directory: dir,
		Git:       git,
		Stamps:    stamp.NewFileRepository(dir.Stamp()),
		Runner:    runner,
	}, nil
}

// ConfigPath returns the settings file of root.
func ConfigPath(root string) string {
	return filepath.Join(root, config.DefaultConfigFilename)
}

// ConfigPath returns the settings file of the installation.
func (i *Installation) ConfigPath() string {
	return ConfigPath(i.Root)
}

// Launcher wires the installation's collaborators into a Launcher.
func (i *Installation) Launcher() *Launcher {
	childEnv := i.Env.ChildEnv(i.Config)

	handoff := i.Delegator
	if handoff == nil {
		handoff = delegator.New()
	}

	return New(&Dependencies{
		Directory: i.Directory,
		Checker:   cachestate.NewChecker(i.Directory, i.Git, i.Stamps, i.Env.ToolArgs),
		SelectLock: func(ctx context.Context) lock.Lock {
			return lock.Select(ctx, lock.Options{
				AdvisoryPath: i.Directory.LockFile(),
				SpinPath:     i.Directory.SpinLockFile(),
				Interval:     i.Config.Lock.SpinInterval,
			})
		},
		Rebuilder: rebuilder.New(&rebuilder.Options{
			Directory: i.Directory,
			Commands:  i.Config.Commands,
			Runner:    i.Runner,
			Stamps:    i.Stamps,
			Retry:     i.Config.Retry,
			Env:       childEnv,
			ExtraArgs: i.Env.ExtraArgs(),
			Verbose:   i.Env.CI,
		}),
		Delegator: handoff,
		Delegate:  i.Config.Commands.Delegate,
		ExtraArgs: i.Env.ExtraArgs(),
		Env:       childEnv,
	})
}

// applyLogLevel picks the log level: an explicit name wins, CI runs get info.
func applyLogLevel(ctx context.Context, env *config.Environment) {
	if env.LogLevel != "" {
		level, ok := logger.ParseLogLevel(env.LogLevel)
		if !ok {
			logger.WarnKV(ctx, "Unknown log level, keeping the default", "level", env.LogLevel)
		}

		logger.SetLevel(level)

		return
	}

	if env.CI {
		logger.SetLevel(zapcore.InfoLevel)
	}
}
