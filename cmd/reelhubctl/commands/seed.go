package commands

import (
	"context"
	"fmt"
	"io"

	"reelhub/internal/bootstrap"
	"reelhub/internal/seed"

	"github.com/spf13/cobra"
)

var seedOpts = seed.DefaultOptions()

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with fake data",
	Long: `Create users, posts, likes, follows, comments and replies through the
service layer, so every counter matches the rows behind it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd, bootstrap.Options{Migrate: true, SkipAssets: true}, func(ctx context.Context, e *env) error {
			sum, err := seed.Seed(ctx, e.db, e.svc, seedOpts)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			return render(cmd.OutOrStdout(), outputFormat, sum, func(w io.Writer) error {
				return table(w, []string{"USERS", "POSTS", "APPROVED", "LIKES", "FOLLOWS", "COMMENTS", "REPLIES"},
					[][]any{{sum.Users, sum.Posts, sum.Approved, sum.Likes, sum.Follows, sum.Comments, sum.Replies}})
			})
		})
	},
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.NumUsers, "users", seedOpts.NumUsers, "Number of users")
	f.IntVar(&seedOpts.NumPosts, "posts", seedOpts.NumPosts, "Number of posts")
	f.Float64Var(&seedOpts.ApproveRatio, "approve-ratio", seedOpts.ApproveRatio, "Share of posts to approve")
	f.IntVar(&seedOpts.MaxLikesPerPost, "likes", seedOpts.MaxLikesPerPost, "Maximum likes per post")
	f.IntVar(&seedOpts.FollowsPerUser, "follows", seedOpts.FollowsPerUser, "Follows per user")
	f.IntVar(&seedOpts.CommentsPerPost, "comments", seedOpts.CommentsPerPost, "Comments per approved post")
	f.IntVar(&seedOpts.RepliesPerComment, "replies", seedOpts.RepliesPerComment, "Replies per comment")
	f.BoolVar(&seedOpts.ShouldClean, "clean", false, "Delete existing data first")
	f.Int64Var(&seedOpts.RandSeed, "seed", 0, "Random seed (0 picks one)")
	f.StringVar(&seedOpts.Bucket, "bucket", "", "Bucket used in generated asset refs")
	rootCmd.AddCommand(seedCmd)
}
