package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

type fixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	seq   atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.New(db)
	return &fixture{
		db:    db,
		repos: repos,
		svc:   New(repos, Options{Retry: fastRetry(), Fanout: 4}),
	}
}

func (f *fixture) user(t *testing.T, role string) *models.User {
	t.Helper()
	n := f.seq.Add(1)
	u := &models.User{
		Name:  fmt.Sprintf("user%d", n),
		Email: fmt.Sprintf("user%d@example.com", n),
		Role:  role,
	}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) post(t *testing.T, owner *models.User) *models.Post {
	t.Helper()
	p, err := f.svc.Posts.CreatePost(context.Background(), CreatePostInput{
		UserID:   owner.ID,
		Title:    fmt.Sprintf("clip %d", f.seq.Add(1)),
		VideoURL: "gs://reelhub-test/videos/clip.mp4",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) approvedPost(t *testing.T, owner, admin *models.User) *models.Post {
	t.Helper()
	p := f.post(t, owner)
	approved, err := f.svc.Posts.ApprovePost(context.Background(), p.ID, admin.ID)
	require.NoError(t, err)
	return approved
}

func (f *fixture) counter(t *testing.T, kind models.EntityKind, id uint, field models.CounterField) int64 {
	t.Helper()
	v, err := f.repos.Counters.Get(context.Background(), models.CounterRef{Kind: kind, ID: id, Field: field})
	require.NoError(t, err)
	return v
}

// assertConsistent checks that no counter has drifted and nothing is
// orphaned.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	drift, err := f.svc.Audit.AuditAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift, "counter drift")

	orphans, err := f.svc.Audit.FindOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans, "orphaned rows")
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}
