package repository

import (
	"context"
	"fmt"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

type orphanSpec struct {
	table string
	where string
}

// orphanSpecs defines, per kind, which rows point at a parent or an author
// that no longer exists.
var orphanSpecs = []struct {
	kind models.EntityKind
	orphanSpec
}{
	{models.KindPost, orphanSpec{"posts",
		"NOT EXISTS (SELECT 1 FROM users WHERE users.id = posts.owner_id)"}},
	{models.KindComment, orphanSpec{"comments",
		"NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = comments.post_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = comments.user_id)"}},
	{models.KindReply, orphanSpec{"replies",
		"NOT EXISTS (SELECT 1 FROM comments WHERE comments.id = replies.comment_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = replies.user_id)"}},
	{models.KindLike, orphanSpec{"likes",
		"NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = likes.post_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = likes.user_id)"}},
	{models.KindFollow, orphanSpec{"follows",
		"NOT EXISTS (SELECT 1 FROM users WHERE users.id = follows.follower_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = follows.following_id)"}},
	{models.KindModerationLog, orphanSpec{"moderation_logs",
		"NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = moderation_logs.post_id) OR NOT EXISTS (SELECT 1 FROM users WHERE users.id = moderation_logs.admin_id)"}},
	{models.KindNotification, orphanSpec{"notifications",
		"NOT EXISTS (SELECT 1 FROM users WHERE users.id = notifications.user_id)" +
			" OR (notifications.sender_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM users WHERE users.id = notifications.sender_id))" +
			" OR (notifications.post_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = notifications.post_id))" +
			" OR (notifications.comment_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM comments WHERE comments.id = notifications.comment_id))" +
			" OR (notifications.reply_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM replies WHERE replies.id = notifications.reply_id))"}},
}

// OrphanKinds lists the kinds FindOrphans inspects, parents first.
func OrphanKinds() []models.EntityKind {
	kinds := make([]models.EntityKind, 0, len(orphanSpecs))
	for _, s := range orphanSpecs {
		kinds = append(kinds, s.kind)
	}
	return kinds
}

// AuditRepository finds rows whose parent has been deleted.
type AuditRepository interface {
	FindOrphans(ctx context.Context, kind models.EntityKind, limit int) ([]uint, error)
	DeleteRows(ctx context.Context, kind models.EntityKind, ids []uint) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func lookupOrphanSpec(kind models.EntityKind) (orphanSpec, error) {
	for _, s := range orphanSpecs {
		if s.kind == kind {
			return s.orphanSpec, nil
		}
	}
	return orphanSpec{}, fmt.Errorf("no orphan rule for %s", kind)
}

func (r *auditRepository) FindOrphans(ctx context.Context, kind models.EntityKind, limit int) ([]uint, error) {
	spec, err := lookupOrphanSpec(kind)
	if err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Table(spec.table).Where("("+spec.where+")").Order(spec.table + ".id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uint
	err = q.Pluck(spec.table+".id", &ids).Error
	return ids, err
}

// DeleteRows removes rows of kind by id without any cascade.
func (r *auditRepository) DeleteRows(ctx context.Context, kind models.EntityKind, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	spec, err := lookupOrphanSpec(kind)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE id IN ?", spec.table), ids)
	return res.RowsAffected, res.Error
}
