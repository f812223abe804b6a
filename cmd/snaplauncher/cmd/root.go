package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/snaplauncher/internal/service/launcher"
)

var (
	// exitCode is the delegated tool's exit code.
	exitCode int

	// runLauncher performs one invocation.
	runLauncher = launcher.Run

	// rootCmd forwards every argument to the cached tool. Execute calls its
	// RunE directly: cobra dispatch would claim "help" and "__complete".
	rootCmd = &cobra.Command{
		Use:   "snaplauncher [tool arguments...]",
		Short: "Rebuild the cached tool when needed and run it.",
		Long: `Self-updating launcher for a tool compiled from the sources of this checkout.

Before every run the cached tool is compared with the current git revision and
the dependency manifest. When it is out of date it is rebuilt under a lock
shared by all concurrent invocations, then executed with the original arguments.
The launcher has no flags or commands of its own: everything is passed to the tool.

Environment:
  SNAPLAUNCHER_ROOT           installation root override
  SNAPLAUNCHER_CI, CI, BOT    enable CI mode (verbose rebuild, usage opt-out)
  SNAPLAUNCHER_PACKAGE_CACHE  package cache for child processes
  SNAPLAUNCHER_TOOL_ARGS      extra compile arguments
  SNAPLAUNCHER_LOG_LEVEL      debug, info, warn or error`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Let interrupts cancel a rebuild so the lock is released on the way out.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			code, err := runLauncher(ctx, &launcher.Options{
				InvokedPath: os.Args[0],
				Args:        args,
			})
			if err != nil {
				return err
			}

			exitCode = code

			return nil
		},
	}
)

// Execute runs the launcher and exits with the tool's exit code.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute hands args to the launcher untouched and returns the process exit code.
func execute(args []string, stderr io.Writer) int {
	if err := rootCmd.RunE(rootCmd, args); err != nil {
		_, _ = fmt.Fprintln(stderr, "snaplauncher:", err)
		return 1
	}

	return exitCode
}
