package service

import (
	"context"
	"fmt"

	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	replyRepo   repository.ReplyRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	counters    *CounterService
	notifier    *NotificationService
	cascade     *CascadeService
	retry       RetryPolicy
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID uint
	PostID uint
	Text   string
}

type CreateReplyInput struct {
	UserID    uint
	CommentID uint
	Text      string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

type DeleteReplyInput struct {
	UserID  uint
	ReplyID uint
}

func NewCommentService(
	repos *repository.Repositories,
	counters *CounterService,
	notifier *NotificationService,
	cascade *CascadeService,
	retry RetryPolicy,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: repos.Comments,
		replyRepo:   repos.Replies,
		postRepo:    repos.Posts,
		userRepo:    repos.Users,
		counters:    counters,
		notifier:    notifier,
		cascade:     cascade,
		retry:       retry,
		isAdmin:     isAdmin,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := validation.ValidateCommentText(in.Text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, notFound(err, "Post", in.PostID)
	}
	if err := requireUser(ctx, s.userRepo, in.UserID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID: in.PostID,
		UserID: in.UserID,
		Text:   in.Text,
	}
	if err := s.retry.Do(ctx, "comment.create", func(ctx context.Context) error {
		return s.commentRepo.Create(ctx, comment)
	}); err != nil {
		return nil, err
	}

	_ = s.counters.Adjust(ctx, models.KindPost, post.ID, models.FieldCommentsCount, 1)
	if post.OwnerID != in.UserID {
		sender, pid, cid := in.UserID, post.ID, comment.ID
		s.notifier.Notify(ctx, &models.Notification{
			UserID:    post.OwnerID,
			SenderID:  &sender,
			Type:      models.NotificationComment,
			Message:   fmt.Sprintf("%s commented on your post", displayName(ctx, s.userRepo, in.UserID)),
			PostID:    &pid,
			CommentID: &cid,
		})
	}
	return comment, nil
}

func (s *CommentService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	if err := validation.ValidateCommentText(in.Text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, notFound(err, "Comment", in.CommentID)
	}
	if err := requireUser(ctx, s.userRepo, in.UserID); err != nil {
		return nil, err
	}

	reply := &models.Reply{
		CommentID: in.CommentID,
		UserID:    in.UserID,
		Text:      in.Text,
	}
	if err := s.retry.Do(ctx, "reply.create", func(ctx context.Context) error {
		return s.replyRepo.Create(ctx, reply)
	}); err != nil {
		return nil, err
	}

	_ = s.counters.Adjust(ctx, models.KindComment, comment.ID, models.FieldRepliesCount, 1)
	if comment.UserID != in.UserID {
		sender, pid, cid, rid := in.UserID, comment.PostID, comment.ID, reply.ID
		s.notifier.Notify(ctx, &models.Notification{
			UserID:    comment.UserID,
			SenderID:  &sender,
			Type:      models.NotificationReply,
			Message:   fmt.Sprintf("%s replied to your comment", displayName(ctx, s.userRepo, in.UserID)),
			PostID:    &pid,
			CommentID: &cid,
			ReplyID:   &rid,
		})
	}
	return reply, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint, page repository.Page) ([]*models.Comment, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.commentRepo.ListByPost(ctx, postID, page)
}

func (s *CommentService) ListReplies(ctx context.Context, commentID uint, page repository.Page) ([]*models.Reply, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, notFound(err, "Comment", commentID)
	}
	return s.replyRepo.ListByComment(ctx, commentID, page)
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*DeletionReport, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, notFound(err, "Comment", in.CommentID)
	}
	if err := s.authorize(ctx, in.UserID, comment.UserID, "You can only delete your own comments"); err != nil {
		return nil, err
	}
	return s.cascade.DeleteComment(ctx, in.CommentID)
}

func (s *CommentService) DeleteReply(ctx context.Context, in DeleteReplyInput) (*DeletionReport, error) {
	reply, err := s.replyRepo.GetByID(ctx, in.ReplyID)
	if err != nil {
		return nil, notFound(err, "Reply", in.ReplyID)
	}
	if err := s.authorize(ctx, in.UserID, reply.UserID, "You can only delete your own replies"); err != nil {
		return nil, err
	}
	return s.cascade.DeleteReply(ctx, in.ReplyID)
}

func (s *CommentService) authorize(ctx context.Context, actorID, ownerID uint, msg string) error {
	return ownerOrAdmin(ctx, s.isAdmin, actorID, ownerID, msg)
}

// ownerOrAdmin allows the owner, or any admin when isAdmin is set.
func ownerOrAdmin(ctx context.Context, isAdmin func(context.Context, uint) (bool, error), actorID, ownerID uint, msg string) error {
	if actorID == ownerID {
		return nil
	}
	if isAdmin == nil {
		return models.NewForbiddenError(msg)
	}
	admin, err := isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(msg)
	}
	return nil
}
