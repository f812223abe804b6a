package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/snaplauncher/internal/service/common"
)

// PrerequisiteError reports a missing external requirement. It is never retried.
type PrerequisiteError struct {
	// Problem describes what is missing.
	Problem string
	// Remediation tells the user how to fix it.
	Remediation string
}

// Error implements the error interface.
func (e *PrerequisiteError) Error() string {
	return e.Problem + "\n" + e.Remediation
}

// UnknownRevisionError reports that the current source revision could not be read.
type UnknownRevisionError struct {
	// Root is the checkout that was queried.
	Root string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *UnknownRevisionError) Error() string {
	return fmt.Sprintf("determine source revision of %s: %v", e.Root, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnknownRevisionError) Unwrap() error {
	return e.Err
}

const gitExecutable = "git"

var (
	errEmptyRevision   = errors.New("git printed an empty revision")
	errNoGitVersion    = errors.New("no version number in git output")
	versionNumberRegex = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)
)

// Git answers source-control questions about an installation root.
type Git struct {
	// root is the installation root expected to be a git checkout.
	root string
	// runner executes git.
	runner common.Runner
	// minVersion is the lowest accepted git version, nil when unchecked.
	minVersion *semver.Version
	// lookPath finds git on the search path.
	lookPath func(string) (string, error)
}

// Option configures a Git instance.
type Option func(*Git)

// WithMinVersion rejects git releases older than version. An empty string disables the check.
func WithMinVersion(version string) Option {
	return func(g *Git) {
		if version == "" {
			return
		}

		if parsed, err := semver.NewVersion(version); err == nil {
			g.minVersion = parsed
		}
	}
}

// WithLookPath replaces the search-path lookup.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(g *Git) {
		if lookPath != nil {
			g.lookPath = lookPath
		}
	}
}

// NewGit creates a Git bound to root.
func NewGit(root string, runner common.Runner, opts ...Option) *Git {
	g := &Git{
		root:     root,
		runner:   runner,
		lookPath: exec.LookPath,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CheckPrerequisites verifies that git is reachable and the root is a checkout.
func (g *Git) CheckPrerequisites(ctx context.Context) error {
	if _, err := g.lookPath(gitExecutable); err != nil {
		return &PrerequisiteError{
			Problem: "Error: Unable to find git in your PATH.",
			Remediation: "The launcher rebuilds its tool from a git checkout and needs git to find the " +
				"current revision. Install git and make sure it is on your PATH, then try again.",
		}
	}

	// .git is a directory in a regular clone and a file in worktrees and submodules.
	if _, err := os.Stat(filepath.Join(g.root, ".git")); err != nil {
		return &PrerequisiteError{
			Problem: fmt.Sprintf("Error: %s is not a clone of the tool's git repository.", g.root),
			Remediation: "The launcher must be run from a git clone of its repository. " +
				"Remove this directory and clone the repository again with 'git clone'.",
		}
	}

	if g.minVersion == nil {
		return nil
	}

	installed, err := g.Version(ctx)
	if err != nil {
		return &PrerequisiteError{
			Problem:     fmt.Sprintf("Error: Unable to determine the git version: %v.", err),
			Remediation: "Make sure 'git --version' works in your shell.",
		}
	}

	if installed.LessThan(g.minVersion) {
		return &PrerequisiteError{
			Problem:     fmt.Sprintf("Error: git %s is too old.", installed),
			Remediation: fmt.Sprintf("Upgrade git to version %s or newer.", g.minVersion),
		}
	}

	return nil
}

// Version parses the output of "git --version".
func (g *Git) Version(ctx context.Context) (*semver.Version, error) {
	output, err := g.runner.Output(ctx, common.Command{
		Name: gitExecutable,
		Args: []string{"--version"},
		Dir:  g.root,
	})
	if err != nil {
		return nil, err
	}

	return ParseVersion(string(output))
}

// Revision returns the commit checked out at the root.
func (g *Git) Revision(ctx context.Context) (string, error) {
	output, err := g.runner.Output(ctx, common.Command{
		Name: gitExecutable,
		Args: []string{"rev-parse", "HEAD"},
		Dir:  g.root,
	})
	if err != nil {
		return "", &UnknownRevisionError{Root: g.root, Err: err}
	}

	revision := strings.TrimSpace(string(output))
	if revision == "" {
		return "", &UnknownRevisionError{Root: g.root, Err: errEmptyRevision}
	}

	return revision, nil
}

// ParseVersion extracts a semantic version from strings like
// "git version 2.39.3 (Apple Git-145)" or "git version 2.45.1.windows.1".
func ParseVersion(output string) (*semver.Version, error) {
	number := versionNumberRegex.FindString(output)
	if number == "" {
		return nil, fmt.Errorf("%q: %w", strings.TrimSpace(output), errNoGitVersion)
	}

	return semver.NewVersion(number)
}
