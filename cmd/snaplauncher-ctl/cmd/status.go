package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusCmd prints the cache state as YAML.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the cached tool is up to date.",
	Long: `Print the installation root, the current source revision, the compile key,
the recorded stamp and the reasons the cache is stale, if any, as YAML.
The artifact and the stamp are not modified. Reporting the lock kind creates
the cache directory and the rebuild lock file when they are missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		installation, err := openInstallation(cmd.Context())
		if err != nil {
			return err
		}

		status, err := installation.Status(cmd.Context())
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(status)
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(data)

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
