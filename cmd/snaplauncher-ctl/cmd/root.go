package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/logger"
	"github.com/oshokin/snaplauncher/internal/service/launcher"
	"github.com/oshokin/snaplauncher/internal/version"
)

var (
	// rootPath overrides the installation root.
	rootPath string
	// logLevel sets the log level name.
	logLevel string

	// rootCmd groups the maintenance commands.
	rootCmd = &cobra.Command{
		Use:   "snaplauncher-ctl",
		Short: "Inspect and maintain the cached tool of a launcher installation.",
		Long: `Maintenance companion of snaplauncher.

Reports whether the cached tool is up to date, forces a rebuild under the same
lock the launcher uses, and writes a settings file with the default layout and
command templates. The installation root is derived the same way the launcher
derives it unless --root is given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel(logLevel)
		},
	}
)

// errUnknownLogLevel is returned for a --log-level value ParseLogLevel rejects.
var errUnknownLogLevel = errors.New("unknown log level")

// applyLogLevel sets the global level from a name; empty keeps the default.
func applyLogLevel(name string) error {
	if name == "" {
		return nil
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("%w %q: use debug, info, warn or error", errUnknownLogLevel, name)
	}

	logger.SetLevel(level)

	return nil
}

// Execute runs the maintenance CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveRoot returns the --root flag or the root derived from this binary's location.
func resolveRoot(env *config.Environment) (string, error) {
	if rootPath != "" {
		env.RootOverride = rootPath
	}

	return launcher.FindRoot(os.Args[0], env)
}

// openInstallation loads the installation this command operates on.
func openInstallation(ctx context.Context) (*launcher.Installation, error) {
	env := config.LoadEnvironment()

	root, err := resolveRoot(env)
	if err != nil {
		return nil, err
	}

	return launcher.Open(ctx, root, env)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&rootPath, "root", "r", "", "installation root (defaults to the parent of this binary's directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}
