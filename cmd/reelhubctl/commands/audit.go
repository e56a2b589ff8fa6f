package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"reelhub/internal/bootstrap"
	"reelhub/internal/service"

	"github.com/spf13/cobra"
)

var (
	auditFix         bool
	auditFailOnDrift bool
)

// ErrDriftFound is returned by audit --fail-on-drift when drift or orphans
// remain after the run.
var ErrDriftFound = errors.New("counter drift or orphaned rows found")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Recount denormalized counters and report drift",
	Long: `Recompute every counter from the rows it summarizes and list the
entities whose stored value disagrees. With --fix, orphaned rows are removed
first and every drifted counter is rewritten from a fresh count.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditFix, "fix", false, "Repair drift and remove orphans")
	auditCmd.Flags().BoolVar(&auditFailOnDrift, "fail-on-drift", false, "Exit non-zero when drift is found and not fixed")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	return withEnv(cmd, bootstrap.Options{SkipAssets: !auditFix}, func(ctx context.Context, e *env) error {
		report, err := e.svc.Audit.Run(ctx, auditFix)
		if err != nil {
			return fmt.Errorf("audit failed: %w", err)
		}
		if err := render(cmd.OutOrStdout(), outputFormat, report, func(w io.Writer) error {
			return printAudit(w, report)
		}); err != nil {
			return err
		}
		if auditFailOnDrift && !report.Fix && (len(report.Discrepancies) > 0 || len(report.Orphans) > 0) {
			return ErrDriftFound
		}
		return nil
	})
}

func printAudit(w io.Writer, report *service.AuditReport) error {
	fmt.Fprintf(w, "Audit %s (fix=%t)\n", report.RunID, report.Fix)
	if len(report.Discrepancies) == 0 {
		fmt.Fprintln(w, "No counter drift.")
	} else {
		rows := make([][]any, 0, len(report.Discrepancies))
		for _, d := range report.Discrepancies {
			rows = append(rows, []any{d.EntityKind, d.EntityID, d.Field, d.Stored, d.Actual})
		}
		if err := table(w, []string{"KIND", "ID", "FIELD", "STORED", "ACTUAL"}, rows); err != nil {
			return err
		}
		if report.Fix {
			fmt.Fprintf(w, "Fixed %d of %d counters.\n", report.Fixed, len(report.Discrepancies))
		}
	}
	for _, kind := range sortedKinds(report.Orphans) {
		fmt.Fprintf(w, "Orphaned %s rows: %d\n", kind, len(report.Orphans[kind]))
	}
	for _, kind := range sortedKinds(report.Cleaned) {
		fmt.Fprintf(w, "Cleaned %s rows: %d\n", kind, report.Cleaned[kind])
	}
	return nil
}
