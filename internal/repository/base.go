// Package repository provides the gorm-backed entity store. Each entity kind
// has its own repository; counter arithmetic and audit queries live in
// CounterRepository and AuditRepository.
package repository

import (
	"gorm.io/gorm"
)

const maxPageSize = 100

// Page is a limit/offset window. A zero Limit means the default of 20.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) scope(db *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return db.Limit(limit).Offset(offset)
}

// deleteWhere hard-deletes rows of model matching query and reports how many
// went away. Zero rows is not an error so cascades can be replayed.
func deleteWhere(db *gorm.DB, model any, query string, args ...any) (int64, error) {
	res := db.Where(query, args...).Delete(model)
	return res.RowsAffected, res.Error
}

// Repositories bundles every store the services depend on.
type Repositories struct {
	Users         UserRepository
	Posts         PostRepository
	Comments      CommentRepository
	Replies       ReplyRepository
	Likes         LikeRepository
	Follows       FollowRepository
	Notifications NotificationRepository
	Moderation    ModerationRepository
	Counters      CounterRepository
	Audit         AuditRepository
}

// New builds all repositories over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Posts:         NewPostRepository(db),
		Comments:      NewCommentRepository(db),
		Replies:       NewReplyRepository(db),
		Likes:         NewLikeRepository(db),
		Follows:       NewFollowRepository(db),
		Notifications: NewNotificationRepository(db),
		Moderation:    NewModerationRepository(db),
		Counters:      NewCounterRepository(db),
		Audit:         NewAuditRepository(db),
	}
}
