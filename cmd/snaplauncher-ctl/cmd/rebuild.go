package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rebuildCmd forces a rebuild of the cached tool.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the cached tool now.",
	Long: `Rebuild the cached tool even when it looks up to date.

The rebuild takes the same lock as the launcher, so running invocations either
wait for it or are waited for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		installation, err := openInstallation(ctx)
		if err != nil {
			return err
		}

		if err = installation.Launcher().Rebuild(ctx); err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Rebuilt", installation.Directory.Artifact())

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(rebuildCmd)
}
