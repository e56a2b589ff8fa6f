package service

import (
	"context"
	"fmt"

	"reelhub/internal/models"
	"reelhub/internal/observability"
	"reelhub/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// RelationshipKind selects which edge the guard operates on.
type RelationshipKind string

const (
	RelationLike   RelationshipKind = "like"
	RelationFollow RelationshipKind = "follow"
)

// RelationshipResult reports whether a create call inserted a new edge.
type RelationshipResult struct {
	Created bool           `json:"created"`
	Like    *models.Like   `json:"like,omitempty"`
	Follow  *models.Follow `json:"follow,omitempty"`
}

type LikeToggleResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

type FollowResult struct {
	Created bool           `json:"created"`
	Follow  *models.Follow `json:"follow,omitempty"`
}

type UnfollowResult struct {
	Removed bool `json:"removed"`
}

// RelationshipService guards like and follow edges. Uniqueness is enforced
// by the store's unique indexes, so concurrent duplicates resolve to a
// single row and a single counter increment.
type RelationshipService struct {
	likes    repository.LikeRepository
	follows  repository.FollowRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	counters *CounterService
	notifier *NotificationService
	retry    RetryPolicy
}

func NewRelationshipService(
	repos *repository.Repositories,
	counters *CounterService,
	notifier *NotificationService,
	retry RetryPolicy,
) *RelationshipService {
	return &RelationshipService{
		likes:    repos.Likes,
		follows:  repos.Follows,
		posts:    repos.Posts,
		users:    repos.Users,
		counters: counters,
		notifier: notifier,
		retry:    retry,
	}
}

// CreateRelationship inserts the (actor, target) edge if absent. An existing
// like is reported with Created=false; an existing follow is a conflict.
func (s *RelationshipService) CreateRelationship(ctx context.Context, kind RelationshipKind, actorID, targetID uint) (res *RelationshipResult, err error) {
	span, ctx := observability.NewSpan(ctx, "relationship.create",
		attribute.String("relationship.kind", string(kind)),
		attribute.Int64("actor.id", int64(actorID)),
		attribute.Int64("target.id", int64(targetID)),
	)
	defer func() { span.Finish(err) }()

	switch kind {
	case RelationLike:
		return s.createLike(ctx, actorID, targetID)
	case RelationFollow:
		return s.createFollow(ctx, actorID, targetID)
	}
	return nil, models.NewValidationError(fmt.Sprintf("unknown relationship kind %q", kind))
}

func (s *RelationshipService) createLike(ctx context.Context, userID, postID uint) (*RelationshipResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, "Post", postID)
	}
	if err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}

	var (
		like    *models.Like
		created bool
	)
	err = s.retry.Do(ctx, "like.insert", func(ctx context.Context) error {
		var err error
		like, created, err = s.likes.Insert(ctx, userID, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &RelationshipResult{Created: false}, nil
	}

	_ = s.counters.Adjust(ctx, models.KindPost, postID, models.FieldLikesCount, 1)
	if post.OwnerID != userID {
		pid := postID
		sender := userID
		s.notifier.Notify(ctx, &models.Notification{
			UserID:   post.OwnerID,
			SenderID: &sender,
			Type:     models.NotificationLike,
			Message:  fmt.Sprintf("%s liked your post", s.displayName(ctx, userID)),
			PostID:   &pid,
		})
	}
	return &RelationshipResult{Created: true, Like: like}, nil
}

func (s *RelationshipService) createFollow(ctx context.Context, followerID, followingID uint) (*RelationshipResult, error) {
	if followerID == followingID {
		return nil, models.NewInvalidOperationError("You can't follow yourself")
	}
	if err := requireUser(ctx, s.users, followingID); err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.users, followerID); err != nil {
		return nil, err
	}

	var (
		follow  *models.Follow
		created bool
	)
	err := s.retry.Do(ctx, "follow.insert", func(ctx context.Context) error {
		var err error
		follow, created, err = s.follows.Insert(ctx, followerID, followingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, models.NewConflictError("Already following this user")
	}

	_ = s.counters.Adjust(ctx, models.KindUser, followingID, models.FieldFollowersCount, 1)
	_ = s.counters.Adjust(ctx, models.KindUser, followerID, models.FieldFollowingCount, 1)

	sender := followerID
	s.notifier.Notify(ctx, &models.Notification{
		UserID:   followingID,
		SenderID: &sender,
		Type:     models.NotificationFollow,
		Message:  fmt.Sprintf("%s started following you", s.displayName(ctx, followerID)),
	})
	return &RelationshipResult{Created: true, Follow: follow}, nil
}

// RemoveRelationship deletes the edge if present. Nothing else changes when
// there was no edge to remove.
func (s *RelationshipService) RemoveRelationship(ctx context.Context, kind RelationshipKind, actorID, targetID uint) (removed bool, err error) {
	span, ctx := observability.NewSpan(ctx, "relationship.remove",
		attribute.String("relationship.kind", string(kind)),
		attribute.Int64("actor.id", int64(actorID)),
		attribute.Int64("target.id", int64(targetID)),
	)
	defer func() { span.Finish(err) }()

	var n int64
	switch kind {
	case RelationLike:
		err = s.retry.Do(ctx, "like.delete", func(ctx context.Context) error {
			var err error
			n, err = s.likes.Delete(ctx, actorID, targetID)
			return err
		})
	case RelationFollow:
		err = s.retry.Do(ctx, "follow.delete", func(ctx context.Context) error {
			var err error
			n, err = s.follows.Delete(ctx, actorID, targetID)
			return err
		})
	default:
		return false, models.NewValidationError(fmt.Sprintf("unknown relationship kind %q", kind))
	}
	if err != nil || n == 0 {
		return false, err
	}

	switch kind {
	case RelationLike:
		_ = s.counters.Adjust(ctx, models.KindPost, targetID, models.FieldLikesCount, -1)
		s.notifier.Retract(ctx, repository.NotificationMatch{
			Type:     models.NotificationLike,
			SenderID: actorID,
			PostID:   targetID,
		})
	case RelationFollow:
		_ = s.counters.Adjust(ctx, models.KindUser, targetID, models.FieldFollowersCount, -1)
		_ = s.counters.Adjust(ctx, models.KindUser, actorID, models.FieldFollowingCount, -1)
		s.notifier.Retract(ctx, repository.NotificationMatch{
			Type:     models.NotificationFollow,
			SenderID: actorID,
			UserID:   targetID,
		})
	}
	return true, nil
}

// ToggleLike likes the post, or unlikes it when the like already exists.
func (s *RelationshipService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeToggleResult, error) {
	res, err := s.CreateRelationship(ctx, RelationLike, userID, postID)
	if err != nil {
		return nil, err
	}

	liked := res.Created
	if !liked {
		if _, err := s.RemoveRelationship(ctx, RelationLike, userID, postID); err != nil {
			return nil, err
		}
	}

	count, err := s.counters.Value(ctx, models.KindPost, postID, models.FieldLikesCount)
	if err != nil {
		return nil, notFound(err, "Post", postID)
	}
	return &LikeToggleResult{Liked: liked, LikesCount: count}, nil
}

func (s *RelationshipService) Follow(ctx context.Context, followerID, followingID uint) (*FollowResult, error) {
	res, err := s.CreateRelationship(ctx, RelationFollow, followerID, followingID)
	if err != nil {
		return nil, err
	}
	return &FollowResult{Created: res.Created, Follow: res.Follow}, nil
}

// Unfollow is a no-op with Removed=false when no follow exists, but the
// target user itself must exist.
func (s *RelationshipService) Unfollow(ctx context.Context, followerID, followingID uint) (*UnfollowResult, error) {
	if followerID == followingID {
		return nil, models.NewInvalidOperationError("You can't unfollow yourself")
	}
	exists, err := s.users.Exists(ctx, followingID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", followingID)
	}

	removed, err := s.RemoveRelationship(ctx, RelationFollow, followerID, followingID)
	if err != nil {
		return nil, err
	}
	return &UnfollowResult{Removed: removed}, nil
}

func (s *RelationshipService) ListLikes(ctx context.Context, postID uint, page repository.Page) ([]*models.Like, error) {
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.likes.ListByPost(ctx, postID, page)
}

func (s *RelationshipService) Followers(ctx context.Context, userID uint, page repository.Page) ([]*models.User, error) {
	if err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	return s.follows.Followers(ctx, userID, page)
}

func (s *RelationshipService) Following(ctx context.Context, userID uint, page repository.Page) ([]*models.User, error) {
	if err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	return s.follows.Following(ctx, userID, page)
}

func (s *RelationshipService) displayName(ctx context.Context, userID uint) string {
	return displayName(ctx, s.users, userID)
}

// displayName is used in notification text; lookup failures fall back to
// a neutral name.
func displayName(ctx context.Context, users repository.UserRepository, userID uint) string {
	u, err := users.GetByIDCached(ctx, userID)
	if err != nil || u.Name == "" {
		return "Someone"
	}
	return u.Name
}
