// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"reelhub/internal/database"
	"reelhub/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated sqlite database in a temp dir. It uses one
// connection so concurrent test goroutines serialize on the pool, like
// writers serialize on row locks in Postgres.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reelhub_test.db")
	cfg := database.GormConfig()
	cfg.Logger = cfg.Logger.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.PersistentModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// FailDeletesOn makes every DELETE against table fail with err until the
// returned func is called.
func FailDeletesOn(t testing.TB, db *gorm.DB, table string, err error) (restore func()) {
	t.Helper()

	name := "testutil:fail_delete_" + table
	cb := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}
	if regErr := db.Callback().Delete().Before("gorm:delete").Register(name, cb); regErr != nil {
		t.Fatalf("register callback: %v", regErr)
	}
	removed := false
	restore = func() {
		if !removed {
			removed = true
			_ = db.Callback().Delete().Remove(name)
		}
	}
	t.Cleanup(restore)
	return restore
}

// Counts returns the live number of rows per table for assertions.
func Counts(t testing.TB, db *gorm.DB) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, table := range []string{"users", "posts", "comments", "replies", "likes", "follows", "notifications", "moderation_logs"} {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		out[table] = n
	}
	return out
}
