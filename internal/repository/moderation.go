package repository

import (
	"context"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository stores the append-only moderation log.
type ModerationRepository interface {
	Create(ctx context.Context, entry *models.ModerationLog) error
	List(ctx context.Context, postID uint, page Page) ([]*models.ModerationLog, error)
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
	DeleteByAdmin(ctx context.Context, adminID uint) (int64, error)
}

type moderationRepository struct {
	db *gorm.DB
}

func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) Create(ctx context.Context, entry *models.ModerationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns log entries newest first, optionally for one post.
func (r *moderationRepository) List(ctx context.Context, postID uint, page Page) ([]*models.ModerationLog, error) {
	q := r.db.WithContext(ctx)
	if postID != 0 {
		q = q.Where("post_id = ?", postID)
	}
	var out []*models.ModerationLog
	err := page.scope(q).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

func (r *moderationRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.ModerationLog{}, "post_id = ?", postID)
}

func (r *moderationRepository) DeleteByAdmin(ctx context.Context, adminID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.ModerationLog{}, "admin_id = ?", adminID)
}
