package service

import (
	"context"
	"errors"
	"strings"

	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/validation"

	"gorm.io/gorm"
)

type UserService struct {
	userRepo repository.UserRepository
	cascade  *CascadeService
}

type CreateUserInput struct {
	Name      string
	Email     string
	Bio       string
	AvatarURL string
}

type DeleteUserInput struct {
	ActorID  uint
	TargetID uint
}

func NewUserService(userRepo repository.UserRepository, cascade *CascadeService) *UserService {
	return &UserService{userRepo: userRepo, cascade: cascade}
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateUserName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(in.Bio) > 300 {
		return nil, models.NewValidationError("bio must be at most 300 characters")
	}
	if err := validation.ValidateOptionalURL("avatar_url", in.AvatarURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user := &models.User{
		Name:      name,
		Email:     email,
		Role:      models.RoleUser,
		Bio:       in.Bio,
		AvatarURL: in.AvatarURL,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("Email already registered")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByIDCached(ctx, id)
	if err != nil {
		return nil, notFound(err, "User", id)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, page repository.Page) ([]*models.User, error) {
	return s.userRepo.List(ctx, page)
}

// DeleteUser lets users delete themselves and admins delete anyone.
func (s *UserService) DeleteUser(ctx context.Context, in DeleteUserInput) (*DeletionReport, error) {
	if in.ActorID != in.TargetID {
		admin, err := s.IsAdmin(ctx, in.ActorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewForbiddenError("You can only delete your own account")
		}
	}
	return s.cascade.DeleteUser(ctx, in.TargetID)
}

func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	admin, err := s.userRepo.IsAdmin(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return admin, err
}

// SetRole changes a user's role. Only "user" and "admin" are accepted.
func (s *UserService) SetRole(ctx context.Context, id uint, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.NewValidationError("Role must be user or admin")
	}
	n, err := s.userRepo.SetRole(ctx, id, role)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}
