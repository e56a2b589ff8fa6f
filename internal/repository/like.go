package repository

import (
	"context"

	"reelhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores like edges. Insert relies on the unique
// (user_id, post_id) index rather than a read-then-write check.
type LikeRepository interface {
	// Insert adds the like and reports false when it already existed.
	Insert(ctx context.Context, userID, postID uint) (*models.Like, bool, error)
	Delete(ctx context.Context, userID, postID uint) (int64, error)
	DeleteByID(ctx context.Context, id uint) (int64, error)
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
	Exists(ctx context.Context, userID, postID uint) (bool, error)
	ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Like, error)
	FindByUser(ctx context.Context, userID uint) ([]*models.Like, error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Insert(ctx context.Context, userID, postID uint) (*models.Like, bool, error) {
	like := &models.Like{UserID: userID, PostID: postID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(like)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return like, res.RowsAffected == 1, nil
}

func (r *likeRepository) Delete(ctx context.Context, userID, postID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Like{}, "user_id = ? AND post_id = ?", userID, postID)
}

func (r *likeRepository) DeleteByID(ctx context.Context, id uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Like{}, "id = ?", id)
}

func (r *likeRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Like{}, "post_id = ?", postID)
}

func (r *likeRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Like, error) {
	var likes []*models.Like
	err := page.scope(r.db.WithContext(ctx)).Where("post_id = ?", postID).Order("id desc").Find(&likes).Error
	return likes, err
}

func (r *likeRepository) FindByUser(ctx context.Context, userID uint) ([]*models.Like, error) {
	var likes []*models.Like
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&likes).Error
	return likes, err
}
