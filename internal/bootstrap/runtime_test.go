package bootstrap

import (
	"context"
	"testing"

	"reelhub/internal/config"
	"reelhub/internal/models"
	"reelhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDevAdmin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	cfg := &config.Config{Env: "development", DevAdminEmail: "Root@Reelhub.Local"}

	require.NoError(t, ensureDevAdmin(ctx, cfg, db))
	require.NoError(t, ensureDevAdmin(ctx, cfg, db), "second run must be a no-op")

	var admins []models.User
	require.NoError(t, db.Where("role = ?", models.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root@reelhub.local", admins[0].Email)
	assert.Equal(t, "reelhub_admin", admins[0].Name)
}

func TestEnsureDevAdmin_PromotesExistingUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	existing := &models.User{Name: "creator", Email: "creator@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(existing).Error)

	cfg := &config.Config{Env: "development", DevAdminEmail: "creator@example.com"}
	require.NoError(t, ensureDevAdmin(ctx, cfg, db))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, existing.ID).Error)
	assert.True(t, reloaded.IsAdmin())
}

func TestEnsureDevAdmin_SkippedOutsideDevelopment(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	cfg := &config.Config{Env: "production", DevAdminEmail: "root@reelhub.local"}

	require.NoError(t, ensureDevAdmin(ctx, cfg, db))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}
