package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/validation"
)

const (
	maxTags             = 10
	maxReassignAttempts = 3
)

type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	moderation repository.ModerationRepository
	counters   *CounterService
	cascade    *CascadeService
	retry      RetryPolicy
	isAdmin    func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID       uint
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	DurationSec  int
	Tags         []string
}

type ListPostsInput struct {
	Limit    int
	Offset   int
	OwnerID  uint
	Approved *bool
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type ModerationInput struct {
	AdminID uint
	PostID  uint
	Reason  string
}

type ReassignOwnerInput struct {
	AdminID    uint
	PostID     uint
	NewOwnerID uint
	Reason     string
}

func NewPostService(
	repos *repository.Repositories,
	counters *CounterService,
	cascade *CascadeService,
	retry RetryPolicy,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo:   repos.Posts,
		userRepo:   repos.Users,
		moderation: repos.Moderation,
		counters:   counters,
		cascade:    cascade,
		retry:      retry,
		isAdmin:    isAdmin,
	}
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d tags are allowed", maxTags))
	}
	return out, nil
}

// CreatePost stores an unapproved post. The owner's posts_count only moves
// on approval.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidatePostTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePostDescription(in.Description); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateVideoURL(in.VideoURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateOptionalURL("thumbnail_url", in.ThumbnailURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.DurationSec < 0 {
		return nil, models.NewValidationError("duration_sec must not be negative")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.userRepo, in.UserID); err != nil {
		return nil, err
	}

	post := &models.Post{
		OwnerID:      in.UserID,
		Title:        title,
		Description:  in.Description,
		VideoURL:     in.VideoURL,
		ThumbnailURL: in.ThumbnailURL,
		DurationSec:  in.DurationSec,
		Tags:         tags,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByIDCached(ctx, id)
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx,
		repository.PostFilter{Approved: in.Approved, OwnerID: in.OwnerID},
		repository.Page{Limit: in.Limit, Offset: in.Offset},
	)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*DeletionReport, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, notFound(err, "Post", in.PostID)
	}
	if err := ownerOrAdmin(ctx, s.isAdmin, in.UserID, post.OwnerID, "You can only delete your own posts"); err != nil {
		return nil, err
	}
	return s.cascade.DeletePost(ctx, in.PostID)
}

// ApprovePost is a one-way transition. The conditional update makes
// concurrent approvals race on the row, so exactly one of them increments
// the owner's posts_count.
func (s *PostService) ApprovePost(ctx context.Context, postID, adminID uint) (*models.Post, error) {
	ownerID, changed, err := s.transition(ctx, postID, false, true)
	if err != nil {
		return nil, err
	}
	if !changed {
		exists, err := s.postRepo.Exists(ctx, postID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewConflictError("Post is already approved")
	}

	s.counters.Applied(ctx, ownerID)
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, "Post", postID)
	}
	s.logModeration(ctx, postID, adminID, models.ModerationApprove, "")
	return post, nil
}

// RejectPost withdraws approval. Rejecting a post that is not approved only
// records the moderation entry.
func (s *PostService) RejectPost(ctx context.Context, in ModerationInput) (*models.Post, error) {
	ownerID, changed, err := s.transition(ctx, in.PostID, true, false)
	if err != nil {
		return nil, err
	}
	if changed {
		s.counters.Applied(ctx, ownerID)
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, notFound(err, "Post", in.PostID)
	}
	s.logModeration(ctx, in.PostID, in.AdminID, models.ModerationReject, in.Reason)
	return post, nil
}

// ReassignOwner moves a post to another user. An approved post carries its
// posts_count with it. The move only applies to the owner and approval state
// just read, so a concurrent approval or reassignment forces a fresh read.
func (s *PostService) ReassignOwner(ctx context.Context, in ReassignOwnerInput) (*models.Post, error) {
	if err := requireUser(ctx, s.userRepo, in.NewOwnerID); err != nil {
		return nil, err
	}

	var (
		post     *models.Post
		oldOwner uint
	)
	for attempt := 0; ; attempt++ {
		if attempt == maxReassignAttempts {
			return nil, models.NewConflictError("Post changed during reassignment, try again")
		}
		var err error
		post, err = s.postRepo.GetByID(ctx, in.PostID)
		if err != nil {
			return nil, notFound(err, "Post", in.PostID)
		}
		if post.OwnerID == in.NewOwnerID {
			return nil, models.NewInvalidOperationError("Post already belongs to this user")
		}

		var moved bool
		err = s.retry.Do(ctx, "post.reassign", func(ctx context.Context) error {
			var err error
			moved, err = s.postRepo.Reassign(ctx, post.ID, post.OwnerID, in.NewOwnerID, post.Approved)
			return err
		})
		if err != nil {
			return nil, err
		}
		if moved {
			oldOwner = post.OwnerID
			break
		}
	}
	if post.Approved {
		s.counters.Applied(ctx, oldOwner, in.NewOwnerID)
	}
	post.OwnerID = in.NewOwnerID

	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("owner %d -> %d", oldOwner, in.NewOwnerID)
	}
	s.logModeration(ctx, post.ID, in.AdminID, models.ModerationReassign, reason)
	return post, nil
}

func (s *PostService) Stats(ctx context.Context) (*models.PostStats, error) {
	return s.postRepo.Stats(ctx)
}

func (s *PostService) ModerationLogs(ctx context.Context, postID uint, page repository.Page) ([]*models.ModerationLog, error) {
	return s.moderation.List(ctx, postID, page)
}

func (s *PostService) transition(ctx context.Context, postID uint, from, to bool) (uint, bool, error) {
	var (
		ownerID uint
		changed bool
	)
	err := s.retry.Do(ctx, "post.approval", func(ctx context.Context) error {
		var err error
		ownerID, changed, err = s.postRepo.SetApproved(ctx, postID, from, to)
		return err
	})
	return ownerID, changed, err
}

func (s *PostService) logModeration(ctx context.Context, postID, adminID uint, action models.ModerationAction, reason string) {
	entry := &models.ModerationLog{PostID: postID, AdminID: adminID, Action: action, Reason: reason}
	if err := s.moderation.Create(ctx, entry); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to write moderation log",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}
