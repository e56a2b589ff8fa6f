package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/observability"
	"reelhub/internal/repository"
	"reelhub/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const defaultCascadeFanout = 8

// BranchFailure is one cascade branch that still failed after retries.
type BranchFailure struct {
	Branch string `json:"branch" yaml:"branch"`
	Error  string `json:"error" yaml:"error"`

	err error
}

// DeletionReport describes what a cascade removed. A non-empty Failures
// list means the cascade was partial; the audit will see what was left.
type DeletionReport struct {
	CascadeID string                      `json:"cascade_id" yaml:"cascade_id"`
	Kind      models.EntityKind           `json:"kind" yaml:"kind"`
	ID        uint                        `json:"id" yaml:"id"`
	Removed   map[models.EntityKind]int64 `json:"removed" yaml:"removed"`
	Failures  []BranchFailure             `json:"failures,omitempty" yaml:"failures,omitempty"`

	mu sync.Mutex
}

func newDeletionReport(kind models.EntityKind, id uint) *DeletionReport {
	return &DeletionReport{
		CascadeID: uuid.NewString(),
		Kind:      kind,
		ID:        id,
		Removed:   map[models.EntityKind]int64{},
	}
}

func (r *DeletionReport) add(kind models.EntityKind, n int64) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.Removed[kind] += n
	r.mu.Unlock()
	observability.CascadeRowsRemoved.WithLabelValues(string(kind)).Add(float64(n))
}

func (r *DeletionReport) fail(branch string, err error) {
	r.mu.Lock()
	r.Failures = append(r.Failures, BranchFailure{Branch: branch, Error: err.Error(), err: err})
	r.mu.Unlock()
}

// Err returns a *PartialCascadeError when any branch failed.
func (r *DeletionReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Branch, f.err))
	}
	return &PartialCascadeError{CascadeID: r.CascadeID, Failures: errs}
}

// CascadeService deletes a root entity and everything that depends on it.
// Each dependent branch is best-effort: a failure is retried, then recorded
// on the report, and never stops siblings or the root delete.
type CascadeService struct {
	repos    *repository.Repositories
	counters *CounterService
	assets   storage.AssetStore
	retry    RetryPolicy
	fanout   int
}

func NewCascadeService(
	repos *repository.Repositories,
	counters *CounterService,
	assets storage.AssetStore,
	retry RetryPolicy,
	fanout int,
) *CascadeService {
	if assets == nil {
		assets = storage.Noop{}
	}
	if fanout <= 0 {
		fanout = defaultCascadeFanout
	}
	return &CascadeService{
		repos:    repos,
		counters: counters,
		assets:   assets,
		retry:    retry,
		fanout:   fanout,
	}
}

// DeleteUser removes the user, their posts, comments, replies, likes,
// follows, moderation entries and notifications.
func (s *CascadeService) DeleteUser(ctx context.Context, id uint) (*DeletionReport, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User", id)
	}
	return s.run(ctx, models.KindUser, id, func(ctx context.Context, rep *DeletionReport) error {
		return s.deleteUser(ctx, rep, user)
	})
}

// DeletePost removes the post with its comments, replies, likes, moderation
// entries and notifications.
func (s *CascadeService) DeletePost(ctx context.Context, id uint) (*DeletionReport, error) {
	post, err := s.repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	return s.run(ctx, models.KindPost, id, func(ctx context.Context, rep *DeletionReport) error {
		return s.deletePost(ctx, rep, post, false, true)
	})
}

func (s *CascadeService) DeleteComment(ctx context.Context, id uint) (*DeletionReport, error) {
	comment, err := s.repos.Comments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Comment", id)
	}
	return s.run(ctx, models.KindComment, id, func(ctx context.Context, rep *DeletionReport) error {
		return s.deleteComment(ctx, rep, comment, true, true)
	})
}

func (s *CascadeService) DeleteReply(ctx context.Context, id uint) (*DeletionReport, error) {
	reply, err := s.repos.Replies.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Reply", id)
	}
	return s.run(ctx, models.KindReply, id, func(ctx context.Context, rep *DeletionReport) error {
		return s.deleteReply(ctx, rep, reply, true, true)
	})
}

// run detaches the cascade from the caller's cancellation and tags every
// log line and span with the cascade id.
func (s *CascadeService) run(ctx context.Context, kind models.EntityKind, id uint, body func(context.Context, *DeletionReport) error) (*DeletionReport, error) {
	rep := newDeletionReport(kind, id)
	ctx = middleware.WithCascadeID(context.WithoutCancel(ctx), rep.CascadeID)

	span, ctx := observability.NewSpan(ctx, "cascade.delete_"+string(kind),
		attribute.String("cascade.id", rep.CascadeID),
		attribute.Int64("entity.id", int64(id)),
	)
	done := observability.ObserveCascade(string(kind))

	err := body(ctx, rep)
	done()
	partial := rep.Err()
	if err != nil {
		span.Finish(err)
		middleware.Logger.ErrorContext(ctx, "cascade delete failed",
			slog.String("kind", string(kind)),
			slog.Uint64("id", uint64(id)),
			slog.String("error", err.Error()),
		)
		return rep, err
	}
	span.AddAttributes(attribute.Int("cascade.failures", len(rep.Failures)))
	span.Finish(nil)

	if partial != nil {
		middleware.Logger.WarnContext(ctx, "cascade delete partially failed",
			slog.String("kind", string(kind)),
			slog.Uint64("id", uint64(id)),
			slog.Any("removed", rep.Removed),
			slog.String("error", partial.Error()),
		)
	} else {
		middleware.Logger.InfoContext(ctx, "cascade delete completed",
			slog.String("kind", string(kind)),
			slog.Uint64("id", uint64(id)),
			slog.Any("removed", rep.Removed),
		)
	}
	return rep, nil
}

// branch runs one best-effort step under the retry policy and records a
// failure on the report.
func (s *CascadeService) branch(ctx context.Context, rep *DeletionReport, name string, fn func(ctx context.Context) error) bool {
	err := s.retry.Do(ctx, "cascade."+name, fn)
	if err == nil {
		return true
	}
	s.recordFailure(ctx, rep, name, err)
	return false
}

func (s *CascadeService) recordFailure(ctx context.Context, rep *DeletionReport, name string, err error) {
	rep.fail(name, err)
	observability.CascadeBranchFailures.WithLabelValues(string(rep.Kind), name).Inc()
	middleware.Logger.WarnContext(ctx, "cascade branch failed",
		slog.String("branch", name),
		slog.String("error", err.Error()),
	)
}

// removeRecord deletes the row for a cascade node. For the root it is the
// primary write and its error is returned; below the root it is a branch.
func (s *CascadeService) removeRecord(ctx context.Context, rep *DeletionReport, kind models.EntityKind, root bool, del func(ctx context.Context) (int64, error)) (int64, error) {
	var n int64
	op := func(ctx context.Context) error {
		var err error
		n, err = del(ctx)
		return err
	}
	if root {
		if err := s.retry.Do(ctx, "cascade."+string(kind)+"_record", op); err != nil {
			return 0, err
		}
	} else if !s.branch(ctx, rep, string(kind)+"_record", op) {
		return 0, nil
	}
	rep.add(kind, n)
	return n, nil
}

func (s *CascadeService) adjust(ctx context.Context, rep *DeletionReport, kind models.EntityKind, id uint, field models.CounterField) {
	if err := s.counters.Adjust(ctx, kind, id, field, -1); err != nil {
		s.recordFailure(ctx, rep, "counter."+string(field), err)
	}
}

func (s *CascadeService) deleteAsset(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.assets.Delete(ctx, ref); err != nil {
		middleware.Logger.WarnContext(ctx, "asset delete failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

// siblings runs independent branches concurrently, bounded by the fan-out
// limit. Branches report their own failures, so the group never errors.
func (s *CascadeService) siblings(ctx context.Context, fns ...func(ctx context.Context)) {
	var g errgroup.Group
	g.SetLimit(s.fanout)
	for _, fn := range fns {
		g.Go(func() error {
			fn(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

func fanEach[T any](s *CascadeService, ctx context.Context, items []T, fn func(ctx context.Context, item T)) {
	fns := make([]func(context.Context), 0, len(items))
	for _, item := range items {
		fns = append(fns, func(ctx context.Context) { fn(ctx, item) })
	}
	s.siblings(ctx, fns...)
}

// find loads a child list inside a branch, returning nil when the branch
// failed.
func find[T any](s *CascadeService, ctx context.Context, rep *DeletionReport, name string, fn func(ctx context.Context) ([]T, error)) []T {
	var out []T
	s.branch(ctx, rep, name, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out
}

func (s *CascadeService) deleteRows(ctx context.Context, rep *DeletionReport, kind models.EntityKind, name string, del func(ctx context.Context) (int64, error)) {
	s.branch(ctx, rep, name, func(ctx context.Context) error {
		n, err := del(ctx)
		if err == nil {
			rep.add(kind, n)
		}
		return err
	})
}

func (s *CascadeService) deleteUser(ctx context.Context, rep *DeletionReport, user *models.User) error {
	uid := user.ID

	posts := find(s, ctx, rep, "posts", func(ctx context.Context) ([]*models.Post, error) {
		return s.repos.Posts.FindByOwner(ctx, uid)
	})
	fanEach(s, ctx, posts, func(ctx context.Context, p *models.Post) {
		_ = s.deletePost(ctx, rep, p, true, false)
	})

	comments := find(s, ctx, rep, "comments", func(ctx context.Context) ([]*models.Comment, error) {
		return s.repos.Comments.FindByUser(ctx, uid)
	})
	fanEach(s, ctx, comments, func(ctx context.Context, c *models.Comment) {
		_ = s.deleteComment(ctx, rep, c, true, false)
	})

	replies := find(s, ctx, rep, "replies", func(ctx context.Context) ([]*models.Reply, error) {
		return s.repos.Replies.FindByUser(ctx, uid)
	})
	fanEach(s, ctx, replies, func(ctx context.Context, r *models.Reply) {
		_ = s.deleteReply(ctx, rep, r, true, false)
	})

	likes := find(s, ctx, rep, "likes", func(ctx context.Context) ([]*models.Like, error) {
		return s.repos.Likes.FindByUser(ctx, uid)
	})
	fanEach(s, ctx, likes, func(ctx context.Context, l *models.Like) {
		var n int64
		ok := s.branch(ctx, rep, "likes", func(ctx context.Context) error {
			var err error
			n, err = s.repos.Likes.DeleteByID(ctx, l.ID)
			return err
		})
		if ok && n > 0 {
			rep.add(models.KindLike, n)
			s.adjust(ctx, rep, models.KindPost, l.PostID, models.FieldLikesCount)
		}
	})

	follows := find(s, ctx, rep, "follows", func(ctx context.Context) ([]*models.Follow, error) {
		return s.repos.Follows.FindByUser(ctx, uid)
	})
	fanEach(s, ctx, follows, func(ctx context.Context, f *models.Follow) {
		var n int64
		ok := s.branch(ctx, rep, "follows", func(ctx context.Context) error {
			var err error
			n, err = s.repos.Follows.DeleteByID(ctx, f.ID)
			return err
		})
		if !ok || n == 0 {
			return
		}
		rep.add(models.KindFollow, n)
		if f.FollowerID == uid {
			s.adjust(ctx, rep, models.KindUser, f.FollowingID, models.FieldFollowersCount)
		} else {
			s.adjust(ctx, rep, models.KindUser, f.FollowerID, models.FieldFollowingCount)
		}
	})

	s.siblings(ctx,
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindModerationLog, "moderation_logs", func(ctx context.Context) (int64, error) {
				return s.repos.Moderation.DeleteByAdmin(ctx, uid)
			})
		},
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindNotification, "notifications", func(ctx context.Context) (int64, error) {
				return s.repos.Notifications.DeleteInvolvingUser(ctx, uid)
			})
		},
	)

	if _, err := s.removeRecord(ctx, rep, models.KindUser, true, func(ctx context.Context) (int64, error) {
		return s.repos.Users.Delete(ctx, uid)
	}); err != nil {
		return err
	}

	s.deleteAsset(ctx, user.AvatarURL)
	return nil
}

// deletePost skips the owner's posts_count release when the owner is being
// deleted in the same cascade.
func (s *CascadeService) deletePost(ctx context.Context, rep *DeletionReport, post *models.Post, ownerGoing, root bool) error {
	pid := post.ID

	s.siblings(ctx,
		func(ctx context.Context) {
			comments := find(s, ctx, rep, "comments", func(ctx context.Context) ([]*models.Comment, error) {
				return s.repos.Comments.FindByPost(ctx, pid)
			})
			fanEach(s, ctx, comments, func(ctx context.Context, c *models.Comment) {
				_ = s.deleteComment(ctx, rep, c, false, false)
			})
		},
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindLike, "likes", func(ctx context.Context) (int64, error) {
				return s.repos.Likes.DeleteByPost(ctx, pid)
			})
		},
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindModerationLog, "moderation_logs", func(ctx context.Context) (int64, error) {
				return s.repos.Moderation.DeleteByPost(ctx, pid)
			})
		},
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindNotification, "notifications", func(ctx context.Context) (int64, error) {
				return s.repos.Notifications.DeleteMatching(ctx, repository.NotificationMatch{PostID: pid})
			})
		},
	)

	n, err := s.removeRecord(ctx, rep, models.KindPost, root, func(ctx context.Context) (int64, error) {
		return s.repos.Posts.Delete(ctx, pid)
	})
	if err != nil {
		return err
	}
	// Decrement only once the delete removed the row, so a repeated or
	// concurrent delete of the same post cannot release the count twice.
	if n > 0 && post.Approved && !ownerGoing {
		s.adjust(ctx, rep, models.KindUser, post.OwnerID, models.FieldPostsCount)
	}

	s.deleteAsset(ctx, post.VideoURL)
	s.deleteAsset(ctx, post.ThumbnailURL)
	return nil
}

// deleteComment decrements the post's comments_count only when decrement is
// set; a post cascade skips it since the post itself is going away.
func (s *CascadeService) deleteComment(ctx context.Context, rep *DeletionReport, comment *models.Comment, decrement, root bool) error {
	cid := comment.ID

	s.siblings(ctx,
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindReply, "replies", func(ctx context.Context) (int64, error) {
				return s.repos.Replies.DeleteByComment(ctx, cid)
			})
		},
		func(ctx context.Context) {
			s.deleteRows(ctx, rep, models.KindNotification, "notifications", func(ctx context.Context) (int64, error) {
				return s.repos.Notifications.DeleteMatching(ctx, repository.NotificationMatch{CommentID: cid})
			})
		},
	)

	n, err := s.removeRecord(ctx, rep, models.KindComment, root, func(ctx context.Context) (int64, error) {
		return s.repos.Comments.Delete(ctx, cid)
	})
	if err != nil {
		return err
	}
	// n == 0 means another delete already removed the row and decremented.
	if n > 0 && decrement {
		s.adjust(ctx, rep, models.KindPost, comment.PostID, models.FieldCommentsCount)
	}
	return nil
}

func (s *CascadeService) deleteReply(ctx context.Context, rep *DeletionReport, reply *models.Reply, decrement, root bool) error {
	rid := reply.ID

	s.deleteRows(ctx, rep, models.KindNotification, "notifications", func(ctx context.Context) (int64, error) {
		return s.repos.Notifications.DeleteMatching(ctx, repository.NotificationMatch{ReplyID: rid})
	})

	n, err := s.removeRecord(ctx, rep, models.KindReply, root, func(ctx context.Context) (int64, error) {
		return s.repos.Replies.Delete(ctx, rid)
	})
	if err != nil {
		return err
	}
	// As with comments, only the delete that removed the row decrements.
	if n > 0 && decrement {
		s.adjust(ctx, rep, models.KindComment, reply.CommentID, models.FieldRepliesCount)
	}
	return nil
}
