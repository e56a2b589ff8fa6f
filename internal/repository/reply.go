package repository

import (
	"context"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

// ReplyRepository defines reply persistence operations.
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	GetByID(ctx context.Context, id uint) (*models.Reply, error)
	ListByComment(ctx context.Context, commentID uint, page Page) ([]*models.Reply, error)
	FindByUser(ctx context.Context, userID uint) ([]*models.Reply, error)
	DeleteByComment(ctx context.Context, commentID uint) (int64, error)
	Delete(ctx context.Context, id uint) (int64, error)
}

type replyRepository struct {
	db *gorm.DB
}

func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}

func (r *replyRepository) GetByID(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).First(&reply, id).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *replyRepository) ListByComment(ctx context.Context, commentID uint, page Page) ([]*models.Reply, error) {
	var replies []*models.Reply
	err := page.scope(r.db.WithContext(ctx)).
		Where("comment_id = ?", commentID).
		Order("created_at asc, id asc").
		Find(&replies).Error
	return replies, err
}

func (r *replyRepository) FindByUser(ctx context.Context, userID uint) ([]*models.Reply, error) {
	var replies []*models.Reply
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&replies).Error
	return replies, err
}

func (r *replyRepository) DeleteByComment(ctx context.Context, commentID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Reply{}, "comment_id = ?", commentID)
}

func (r *replyRepository) Delete(ctx context.Context, id uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Reply{}, "id = ?", id)
}
