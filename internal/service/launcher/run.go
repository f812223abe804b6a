package launcher

import (
	"context"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/logger"
)

// Options are the inputs of one launcher invocation.
type Options struct {
	// InvokedPath is argv[0] of the launcher process.
	InvokedPath string
	// Args are forwarded to the tool unmodified.
	Args []string
}

// Run resolves the installation, refreshes the cached tool and delegates to it.
// It returns the tool's exit code when delegation had to wait for the tool.
func Run(ctx context.Context, opts *Options) (int, error) {
	// Read launcher variables before anything logs.
	env := config.LoadEnvironment()
	applyLogLevel(ctx, env)

	ctx = logger.WithName(ctx, "snaplauncher")

	// Locate the installation through the physical launcher file.
	root, err := FindRoot(opts.InvokedPath, env)
	if err != nil {
		return 0, err
	}

	ctx = logger.WithKV(ctx, "root", root)

	installation, err := Open(ctx, root, env)
	if err != nil {
		return 0, err
	}

	return installation.Launcher().Launch(ctx, opts.Args)
}
