// Package seed fills a development database with fake users, posts and
// relationships. Everything is created through the services so counters
// stay consistent with the rows behind them.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers          int
	NumPosts          int
	ApproveRatio      float64
	MaxLikesPerPost   int
	FollowsPerUser    int
	CommentsPerPost   int
	RepliesPerComment int
	ShouldClean       bool
	RandSeed          int64
	Bucket            string
}

// DefaultOptions is a small but fully connected data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:          20,
		NumPosts:          50,
		ApproveRatio:      0.8,
		MaxLikesPerPost:   10,
		FollowsPerUser:    5,
		CommentsPerPost:   3,
		RepliesPerComment: 1,
	}
}

// Summary counts what Seed created.
type Summary struct {
	Users    int `json:"users" yaml:"users"`
	Posts    int `json:"posts" yaml:"posts"`
	Approved int `json:"approved" yaml:"approved"`
	Likes    int `json:"likes" yaml:"likes"`
	Follows  int `json:"follows" yaml:"follows"`
	Comments int `json:"comments" yaml:"comments"`
	Replies  int `json:"replies" yaml:"replies"`
}

// Seed populates the database. The first user created is promoted to admin
// and approves the posts.
func Seed(ctx context.Context, db *gorm.DB, svc *service.Services, opts Options) (*Summary, error) {
	log := middleware.Logger
	log.InfoContext(ctx, "Starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Int("posts", opts.NumPosts))

	if opts.NumUsers < 1 {
		return nil, fmt.Errorf("seed needs at least one user, got %d", opts.NumUsers)
	}
	if opts.ShouldClean {
		if err := clearData(ctx, db); err != nil {
			log.WarnContext(ctx, "could not clear existing data, continuing", slog.String("error", err.Error()))
		}
	}

	f := NewFactory(opts.RandSeed, opts.Bucket)
	// #nosec G404: acceptable for seeding
	rng := rand.New(rand.NewSource(opts.RandSeed + 1))
	sum := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for range opts.NumUsers {
		u, err := svc.Users.CreateUser(ctx, f.UserInput())
		if err != nil {
			return sum, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	admin := users[0]
	if err := svc.Users.SetRole(ctx, admin.ID, models.RoleAdmin); err != nil {
		return sum, fmt.Errorf("failed to promote admin: %w", err)
	}
	log.InfoContext(ctx, "users created", slog.Int("count", sum.Users), slog.String("admin", admin.Email))

	approveN := approvedCount(opts.NumPosts, opts.ApproveRatio)
	approved := make([]*models.Post, 0, approveN)
	for i := range opts.NumPosts {
		owner := users[rng.Intn(len(users))]
		p, err := svc.Posts.CreatePost(ctx, f.PostInput(owner.ID))
		if err != nil {
			return sum, fmt.Errorf("failed to create post: %w", err)
		}
		sum.Posts++
		if i >= approveN {
			continue
		}
		ok, err := svc.Posts.ApprovePost(ctx, p.ID, admin.ID)
		if err != nil {
			return sum, fmt.Errorf("failed to approve post %d: %w", p.ID, err)
		}
		approved = append(approved, ok)
	}
	sum.Approved = len(approved)
	log.InfoContext(ctx, "posts created", slog.Int("count", sum.Posts), slog.Int("approved", sum.Approved))

	for _, u := range users {
		for _, i := range pick(rng, len(users), opts.FollowsPerUser) {
			target := users[i]
			if target.ID == u.ID {
				continue
			}
			res, err := svc.Relationships.CreateRelationship(ctx, service.RelationFollow, u.ID, target.ID)
			if err != nil {
				if models.ErrorCode(err) == models.CodeConflict {
					continue
				}
				return sum, fmt.Errorf("failed to follow: %w", err)
			}
			if res.Created {
				sum.Follows++
			}
		}
	}

	for _, p := range approved {
		for _, i := range pick(rng, len(users), rng.Intn(opts.MaxLikesPerPost+1)) {
			res, err := svc.Relationships.CreateRelationship(ctx, service.RelationLike, users[i].ID, p.ID)
			if err != nil {
				return sum, fmt.Errorf("failed to like post %d: %w", p.ID, err)
			}
			if res.Created {
				sum.Likes++
			}
		}

		for range opts.CommentsPerPost {
			author := users[rng.Intn(len(users))]
			c, err := svc.Comments.CreateComment(ctx, service.CreateCommentInput{
				UserID: author.ID,
				PostID: p.ID,
				Text:   f.CommentText(),
			})
			if err != nil {
				return sum, fmt.Errorf("failed to comment on post %d: %w", p.ID, err)
			}
			sum.Comments++

			for range opts.RepliesPerComment {
				replier := users[rng.Intn(len(users))]
				if _, err := svc.Comments.CreateReply(ctx, service.CreateReplyInput{
					UserID:    replier.ID,
					CommentID: c.ID,
					Text:      f.CommentText(),
				}); err != nil {
					return sum, fmt.Errorf("failed to reply to comment %d: %w", c.ID, err)
				}
				sum.Replies++
			}
		}
	}

	log.InfoContext(ctx, "Database seeding completed",
		slog.Int("likes", sum.Likes),
		slog.Int("follows", sum.Follows),
		slog.Int("comments", sum.Comments),
		slog.Int("replies", sum.Replies),
	)
	return sum, nil
}

// approvedCount is how many of n posts get approved at ratio, clamped to [0, n].
func approvedCount(n int, ratio float64) int {
	if n <= 0 || ratio <= 0 {
		return 0
	}
	if ratio >= 1 {
		return n
	}
	return int(math.Round(float64(n) * ratio))
}

// pick returns up to k distinct indexes below n.
func pick(rng *rand.Rand, n, k int) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	return rng.Perm(n)[:k]
}

// clearTables lists tables children first so sqlite, which has no TRUNCATE,
// can delete in order.
var clearTables = []string{
	"notifications", "moderation_logs", "replies", "comments",
	"likes", "follows", "posts", "users",
}

func clearData(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "Clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.WithContext(ctx).Exec(`TRUNCATE TABLE notifications, moderation_logs, replies, comments, likes, follows, posts, users RESTART IDENTITY CASCADE;`).Error
	}
	for _, table := range clearTables {
		if err := db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
