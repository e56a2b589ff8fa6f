package repository

import (
	"context"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, error)
	FindByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	FindByUser(ctx context.Context, userID uint) ([]*models.Comment, error)
	Delete(ctx context.Context, id uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := page.scope(r.db.WithContext(ctx)).
		Where("post_id = ?", postID).
		Order("created_at desc, id desc").
		Find(&comments).Error
	return comments, err
}

// FindByPost returns every comment on a post, for cascades.
func (r *commentRepository) FindByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("id asc").Find(&comments).Error
	return comments, err
}

func (r *commentRepository) FindByUser(ctx context.Context, userID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Delete(ctx context.Context, id uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Comment{}, "id = ?", id)
}
