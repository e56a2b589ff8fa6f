package commands

import (
	"context"
	"fmt"

	"reelhub/internal/bootstrap"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, bootstrap.Options{Migrate: true, SkipAssets: true}, func(_ context.Context, _ *env) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations complete.")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
