package repository

import (
	"context"

	"reelhub/internal/cache"
	"reelhub/internal/models"

	"gorm.io/gorm"
)

// PostFilter narrows post listings. A nil Approved matches both states.
type PostFilter struct {
	Approved *bool
	OwnerID  uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByIDCached(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, page Page) ([]*models.Post, error)
	FindByOwner(ctx context.Context, ownerID uint) ([]*models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	// SetApproved flips approved from -> to and moves the owner's
	// posts_count in the same transaction. It returns the owner and whether
	// this call performed the transition.
	SetApproved(ctx context.Context, id uint, from, to bool) (ownerID uint, changed bool, err error)
	// Reassign moves the post to toOwner only while it still belongs to
	// fromOwner with the given approval state. An approved post takes one
	// unit of posts_count with it in the same transaction.
	Reassign(ctx context.Context, id, fromOwner, toOwner uint, approved bool) (bool, error)
	Stats(ctx context.Context) (*models.PostStats, error)
	Delete(ctx context.Context, id uint) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByIDCached(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, page Page) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if filter.Approved != nil {
		q = q.Where("approved = ?", *filter.Approved)
	}
	if filter.OwnerID != 0 {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}

	var posts []*models.Post
	err := page.scope(q).Order("created_at desc, id desc").Find(&posts).Error
	return posts, err
}

func (r *postRepository) FindByOwner(ctx context.Context, ownerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id asc").Find(&posts).Error
	return posts, err
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *postRepository) SetApproved(ctx context.Context, id uint, from, to bool) (uint, bool, error) {
	var (
		ownerID uint
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND approved = ?", id, from).
			Update("approved", to)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		// The update holds the row lock, so the owner cannot change under us.
		var owners []uint
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Pluck("owner_id", &owners).Error; err != nil {
			return err
		}
		if len(owners) == 0 {
			return gorm.ErrRecordNotFound
		}
		ownerID, changed = owners[0], true
		if from == to {
			return nil
		}
		delta := int64(1)
		if !to {
			delta = -1
		}
		_, err := adjust(tx, models.CounterRef{Kind: models.KindUser, ID: ownerID, Field: models.FieldPostsCount}, delta)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if changed {
		cache.InvalidatePost(ctx, id)
	}
	return ownerID, changed, nil
}

func (r *postRepository) Reassign(ctx context.Context, id, fromOwner, toOwner uint, approved bool) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND owner_id = ? AND approved = ?", id, fromOwner, approved).
			Update("owner_id", toOwner)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		moved = true
		if !approved {
			return nil
		}
		return transfer(tx, models.FieldPostsCount, fromOwner, toOwner)
	})
	if err != nil {
		return false, err
	}
	if moved {
		cache.InvalidatePost(ctx, id)
	}
	return moved, nil
}

func (r *postRepository) Stats(ctx context.Context) (*models.PostStats, error) {
	var stats models.PostStats
	db := r.db.WithContext(ctx).Model(&models.Post{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("approved = ?", true).Count(&stats.Approved).Error; err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Approved
	return &stats, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) (int64, error) {
	n, err := deleteWhere(r.db.WithContext(ctx), &models.Post{}, "id = ?", id)
	if err == nil {
		cache.InvalidatePost(ctx, id)
	}
	return n, err
}
