package repository

import (
	"context"

	"reelhub/internal/cache"
	"reelhub/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDCached(ctx context.Context, id uint) (*models.User, error)
	List(ctx context.Context, page Page) ([]*models.User, error)
	Exists(ctx context.Context, id uint) (bool, error)
	IsAdmin(ctx context.Context, id uint) (bool, error)
	SetRole(ctx context.Context, id uint, role string) (int64, error)
	Delete(ctx context.Context, id uint) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDCached(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page Page) ([]*models.User, error) {
	var users []*models.User
	err := page.scope(r.db.WithContext(ctx)).Order("id asc").Find(&users).Error
	return users, err
}

func (r *userRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) IsAdmin(ctx context.Context, id uint) (bool, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "role").First(&user, id).Error; err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

func (r *userRepository) SetRole(ctx context.Context, id uint, role string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error == nil {
		cache.InvalidateUser(ctx, id)
	}
	return res.RowsAffected, res.Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) (int64, error) {
	n, err := deleteWhere(r.db.WithContext(ctx), &models.User{}, "id = ?", id)
	if err == nil {
		cache.InvalidateUser(ctx, id)
	}
	return n, err
}
