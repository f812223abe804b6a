package launcher

import (
	"context"
	"errors"
	"os"

	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/lock"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
	"github.com/oshokin/snaplauncher/internal/service/cachestate"
)

// Status describes the cache of an installation.
type Status struct {
	Root     string            `yaml:"root"`
	Revision string            `yaml:"revision"`
	Key      string            `yaml:"key"`
	Stamp    string            `yaml:"stamp"`
	Artifact string            `yaml:"artifact"`
	Fresh    bool              `yaml:"fresh"`
	Reasons  []snapshot.Reason `yaml:"reasons,omitempty"`
	LockKind lock.Kind         `yaml:"lock_kind"`
	ToolArgs string            `yaml:"tool_args,omitempty"`
	Config   string            `yaml:"config"`
}

// Status reports freshness without touching the artifact or the stamp.
// Probing the lock kind creates the cache directory and the lock file when missing.
func (i *Installation) Status(ctx context.Context) (*Status, error) {
	revision, err := i.Git.Revision(ctx)
	if err != nil {
		return nil, err
	}

	verdict, err := cachestate.NewChecker(i.Directory, i.Git, i.Stamps, i.Env.ToolArgs).Check(ctx)
	if err != nil {
		return nil, err
	}

	recorded, err := i.Stamps.Load(ctx)
	if err != nil && !errors.Is(err, stamp.ErrNotFound) {
		return nil, err
	}

	rebuildLock := lock.Select(ctx, lock.Options{
		AdvisoryPath: i.Directory.LockFile(),
		SpinPath:     i.Directory.SpinLockFile(),
		Interval:     i.Config.Lock.SpinInterval,
	})

	return &Status{
		Root:     i.Root,
		Revision: revision,
		Key:      verdict.Key,
		Stamp:    recorded,
		Artifact: i.Directory.Artifact(),
		Fresh:    verdict.Fresh(),
		Reasons:  verdict.Reasons,
		LockKind: rebuildLock.Kind(),
		ToolArgs: i.Env.ToolArgs,
		Config:   i.configSource(),
	}, nil
}

// configSource names where the settings came from.
func (i *Installation) configSource() string {
	path := i.ConfigPath()
	if _, err := os.Stat(path); err != nil {
		return "defaults"
	}

	return path
}
