// Package bootstrap connects the runtime dependencies shared by the server
// and the command-line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"reelhub/internal/cache"
	"reelhub/internal/config"
	"reelhub/internal/database"
	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Migrate runs AutoMigrate before returning.
	Migrate bool
	// SkipAssets leaves asset deletion disabled even when a bucket is set.
	SkipAssets bool
}

// Runtime is the set of connected dependencies.
type Runtime struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Assets storage.AssetStore
}

// InitRuntime connects to the database, Redis and object storage. Redis is
// optional: when it is unreachable Runtime.Redis is nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if opts.Migrate {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)

	rt := &Runtime{DB: db, Redis: cache.GetClient(), Assets: storage.Noop{}}
	if cfg.GCSBucket != "" && !opts.SkipAssets {
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		rt.Assets = gcs
	} else if cfg.GCSBucket == "" {
		middleware.Logger.Warn("GCS_BUCKET not set, asset deletes are disabled")
	}

	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}
	return rt, nil
}

// Close releases every connection the runtime holds.
func (r *Runtime) Close() error {
	var errs []error
	if closer, ok := r.Assets.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// ensureDevAdmin makes DEV_ADMIN_EMAIL an admin in development, creating the
// account when missing.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.DevAdminEmail == "" {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	name := strings.TrimSpace(cfg.DevAdminName)
	if name == "" {
		name = "reelhub_admin"
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			return tx.Create(&models.User{Name: name, Email: email, Role: models.RoleAdmin}).Error
		case findErr != nil:
			return findErr
		case admin.Role != models.RoleAdmin:
			return tx.Model(&models.User{}).Where("id = ?", admin.ID).Update("role", models.RoleAdmin).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "development admin ensured", slog.String("email", email))
	return nil
}
