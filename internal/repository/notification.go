package repository

import (
	"context"
	"errors"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

// NotificationMatch selects notifications for bulk removal. Set fields are
// ANDed together; at least one must be set.
type NotificationMatch struct {
	UserID    uint
	SenderID  uint
	Type      models.NotificationType
	PostID    uint
	CommentID uint
	ReplyID   uint
}

var errEmptyMatch = errors.New("notification match has no conditions")

// NotificationRepository defines notification persistence operations.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id uint) (int64, error)
	Delete(ctx context.Context, id uint) (int64, error)
	DeleteMatching(ctx context.Context, m NotificationMatch) (int64, error)
	// DeleteInvolvingUser removes notifications the user received or sent.
	DeleteInvolvingUser(ctx context.Context, userID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]*models.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []*models.Notification
	err := page.scope(q).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Notification{}, "id = ?", id)
}

func (r *notificationRepository) DeleteMatching(ctx context.Context, m NotificationMatch) (int64, error) {
	q := r.db.WithContext(ctx)
	conds := 0
	add := func(col string, v uint) {
		if v != 0 {
			q = q.Where(col+" = ?", v)
			conds++
		}
	}
	add("user_id", m.UserID)
	add("sender_id", m.SenderID)
	add("post_id", m.PostID)
	add("comment_id", m.CommentID)
	add("reply_id", m.ReplyID)
	if m.Type != "" {
		q = q.Where("type = ?", m.Type)
		conds++
	}
	if conds == 0 {
		return 0, errEmptyMatch
	}
	res := q.Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) DeleteInvolvingUser(ctx context.Context, userID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Notification{}, "user_id = ? OR sender_id = ?", userID, userID)
}
