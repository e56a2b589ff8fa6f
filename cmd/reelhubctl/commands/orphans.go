package commands

import (
	"context"
	"fmt"
	"io"

	"reelhub/internal/bootstrap"
	"reelhub/internal/models"

	"github.com/spf13/cobra"
)

var orphansCleanup bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List rows whose parent no longer exists",
	Long: `List likes, follows, comments, replies, posts and notifications that
point at a deleted parent. With --cleanup they are removed, posts and
comments through their cascade.`,
	Args: cobra.NoArgs,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansCleanup, "cleanup", false, "Delete the orphaned rows")
	rootCmd.AddCommand(orphansCmd)
}

type orphansResult struct {
	Orphans map[models.EntityKind][]uint `json:"orphans" yaml:"orphans"`
	Cleaned map[models.EntityKind]int64  `json:"cleaned,omitempty" yaml:"cleaned,omitempty"`
}

func runOrphans(cmd *cobra.Command, _ []string) error {
	return withEnv(cmd, bootstrap.Options{SkipAssets: !orphansCleanup}, func(ctx context.Context, e *env) error {
		orphans, err := e.svc.Audit.FindOrphans(ctx)
		if err != nil {
			return fmt.Errorf("failed to find orphans: %w", err)
		}
		res := orphansResult{Orphans: orphans}
		if orphansCleanup && len(orphans) > 0 {
			if res.Cleaned, err = e.svc.Audit.CleanupOrphans(ctx, orphans); err != nil {
				return fmt.Errorf("failed to clean up orphans: %w", err)
			}
		}
		return render(cmd.OutOrStdout(), outputFormat, res, func(w io.Writer) error {
			if len(res.Orphans) == 0 {
				fmt.Fprintln(w, "No orphaned rows.")
				return nil
			}
			rows := make([][]any, 0, len(res.Orphans))
			for _, kind := range sortedKinds(res.Orphans) {
				rows = append(rows, []any{kind, len(res.Orphans[kind]), res.Cleaned[kind]})
			}
			return table(w, []string{"KIND", "FOUND", "CLEANED"}, rows)
		})
	})
}
