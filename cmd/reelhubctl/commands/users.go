package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"reelhub/internal/bootstrap"
	"reelhub/internal/models"
	"reelhub/internal/service"

	"github.com/spf13/cobra"
)

var deleteUserCmd = &cobra.Command{
	Use:   "delete-user <id>",
	Short: "Delete a user and everything they own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withEnv(cmd, bootstrap.Options{}, func(ctx context.Context, e *env) error {
			report, err := e.svc.Cascade.DeleteUser(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to delete user %d: %w", id, err)
			}
			if err := render(cmd.OutOrStdout(), outputFormat, report, func(w io.Writer) error {
				return printDeletion(w, report)
			}); err != nil {
				return err
			}
			return report.Err()
		})
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Grant a user the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withEnv(cmd, bootstrap.Options{SkipAssets: true}, func(ctx context.Context, e *env) error {
			if err := e.svc.Users.SetRole(ctx, id, models.RoleAdmin); err != nil {
				return fmt.Errorf("failed to promote user %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d is now an admin.\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteUserCmd, promoteCmd)
}

func parseUserID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return uint(id), nil
}

func printDeletion(w io.Writer, report *service.DeletionReport) error {
	fmt.Fprintf(w, "Cascade %s removed %s %d\n", report.CascadeID, report.Kind, report.ID)
	rows := make([][]any, 0, len(report.Removed))
	for _, kind := range sortedKinds(report.Removed) {
		rows = append(rows, []any{kind, report.Removed[kind]})
	}
	if err := table(w, []string{"KIND", "REMOVED"}, rows); err != nil {
		return err
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "FAILED %s: %s\n", f.Branch, f.Error)
	}
	return nil
}
