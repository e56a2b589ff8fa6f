package repository

import (
	"context"

	"reelhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores follow edges keyed by the ordered
// (follower_id, following_id) pair.
type FollowRepository interface {
	Insert(ctx context.Context, followerID, followingID uint) (*models.Follow, bool, error)
	Delete(ctx context.Context, followerID, followingID uint) (int64, error)
	DeleteByID(ctx context.Context, id uint) (int64, error)
	FindByUser(ctx context.Context, userID uint) ([]*models.Follow, error)
	Followers(ctx context.Context, userID uint, page Page) ([]*models.User, error)
	Following(ctx context.Context, userID uint, page Page) ([]*models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Insert(ctx context.Context, followerID, followingID uint) (*models.Follow, bool, error) {
	follow := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
			DoNothing: true,
		}).
		Create(follow)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return follow, res.RowsAffected == 1, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Follow{},
		"follower_id = ? AND following_id = ?", followerID, followingID)
}

func (r *followRepository) DeleteByID(ctx context.Context, id uint) (int64, error) {
	return deleteWhere(r.db.WithContext(ctx), &models.Follow{}, "id = ?", id)
}

// FindByUser returns follows where the user is on either side.
func (r *followRepository) FindByUser(ctx context.Context, userID uint) ([]*models.Follow, error) {
	var follows []*models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? OR following_id = ?", userID, userID).
		Order("id asc").
		Find(&follows).Error
	return follows, err
}

func (r *followRepository) Followers(ctx context.Context, userID uint, page Page) ([]*models.User, error) {
	var users []*models.User
	err := page.scope(r.db.WithContext(ctx)).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("follows.id desc").
		Find(&users).Error
	return users, err
}

func (r *followRepository) Following(ctx context.Context, userID uint, page Page) ([]*models.User, error) {
	var users []*models.User
	err := page.scope(r.db.WithContext(ctx)).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.id desc").
		Find(&users).Error
	return users, err
}
