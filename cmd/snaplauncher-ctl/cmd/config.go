package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/snaplauncher/internal/config"
	"github.com/oshokin/snaplauncher/internal/service/launcher"
)

var (
	// force allows overwriting an existing settings file.
	force bool

	// configCmd groups settings file commands.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file.",
	}

	// configInitCmd writes the default settings.
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file into the installation root.",
		Long: `Write snaplauncher.yaml with the default cache layout, command templates,
retry policy and lock settings, ready to be edited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(config.LoadEnvironment())
			if err != nil {
				return err
			}

			path := launcher.ConfigPath(root)

			if _, err = os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("check settings file: %w", err)
			}

			if err = config.Save(path, config.Default()); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
