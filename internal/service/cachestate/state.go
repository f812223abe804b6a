package cachestate

import (
	"context"
	"errors"
	"os"

	"github.com/oshokin/snaplauncher/internal/domain/snapshot"
	"github.com/oshokin/snaplauncher/internal/logger"
	"github.com/oshokin/snaplauncher/internal/repository/stamp"
)

// RevisionSource reports the revision of the installation's sources.
type RevisionSource interface {
	Revision(ctx context.Context) (string, error)
}

// Checker observes the cache on disk and decides whether it is fresh.
// It never modifies the cache.
type Checker struct {
	// dir locates the artifact, the stamp and the manifests.
	dir snapshot.Directory
	// revisions provides the current source revision.
	revisions RevisionSource
	// stamps reads the recorded compile key.
	stamps stamp.Repository
	// toolArgs is the raw extra-arguments value folded into the compile key.
	toolArgs string
}

// NewChecker creates a Checker for dir.
func NewChecker(dir snapshot.Directory, revisions RevisionSource, stamps stamp.Repository, toolArgs string) *Checker {
	return &Checker{
		dir:       dir,
		revisions: revisions,
		stamps:    stamps,
		toolArgs:  toolArgs,
	}
}

// Check returns the freshness verdict. Failing to read the revision is fatal
// and returned as is; any other unreadable file just makes the cache stale.
func (c *Checker) Check(ctx context.Context) (snapshot.Verdict, error) {
	revision, err := c.revisions.Revision(ctx)
	if err != nil {
		return snapshot.Verdict{}, err
	}

	observation := snapshot.Observation{
		ArtifactExists: isRegularFile(c.dir.Artifact()),
		Stamp:          c.loadStamp(ctx),
		Key:            snapshot.CompileKey(revision, c.toolArgs),
		ManifestNewer:  c.manifestNewer(ctx),
	}

	verdict := snapshot.Evaluate(observation)

	logger.DebugKV(ctx, "Cache freshness evaluated",
		"fresh", verdict.Fresh(), "key", verdict.Key, "reasons", verdict.Reasons)

	return verdict, nil
}

func (c *Checker) loadStamp(ctx context.Context) string {
	key, err := c.stamps.Load(ctx)
	if err != nil {
		if !errors.Is(err, stamp.ErrNotFound) {
			logger.WarnKV(ctx, "Unable to read the cache stamp", "error", err)
		}

		return ""
	}

	return key
}

// manifestNewer reports whether the manifest is strictly newer than its lock.
// A missing manifest is never newer; a missing lock is older than any manifest.
func (c *Checker) manifestNewer(ctx context.Context) bool {
	manifest, err := os.Stat(c.dir.Manifest())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to stat the dependency manifest", "error", err)
			return true
		}

		return false
	}

	lock, err := os.Stat(c.dir.ManifestLock())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to stat the dependency lock", "error", err)
		}

		return true
	}

	return manifest.ModTime().After(lock.ModTime())
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
