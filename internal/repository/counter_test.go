package repository

import (
	"context"
	"regexp"
	"testing"

	"reelhub/internal/models"
	"reelhub/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestCounterRepository_AdjustIsSingleClampedUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"row present", 1, true},
		{"row gone", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(
				`UPDATE "posts" SET "likes_count"=CASE WHEN likes_count + $1 < 0 THEN 0 ELSE likes_count + $2 END WHERE id = $3`)).
				WithArgs(int64(-1), int64(-1), 5).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			applied, err := repo.Adjust(ctx, models.CounterRef{Kind: models.KindPost, ID: 5, Field: models.FieldLikesCount}, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCounterRepository_UnknownCounter(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	_, err := repo.Adjust(context.Background(), models.CounterRef{Kind: models.KindReply, ID: 1, Field: models.FieldLikesCount}, 1)
	var unknown ErrUnknownCounter
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, models.KindReply, unknown.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepository_DriftAndRecount(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	owner := &models.User{Name: "owner", Email: "o@example.com"}
	require.NoError(t, db.Create(owner).Error)
	post := &models.Post{OwnerID: owner.ID, Title: "clip", VideoURL: "gs://b/v.mp4", Approved: true, LikesCount: 5}
	require.NoError(t, db.Create(post).Error)
	require.NoError(t, db.Create(&models.Like{UserID: owner.ID, PostID: post.ID}).Error)

	drift, err := repo.Drift(ctx, models.KindPost, models.FieldLikesCount)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, CounterDrift{ID: post.ID, Stored: 5, Actual: 1}, drift[0])

	drift, err = repo.Drift(ctx, models.KindUser, models.FieldPostsCount)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, int64(1), drift[0].Actual)

	v, found, err := repo.Recount(ctx, models.CounterRef{Kind: models.KindPost, ID: post.ID, Field: models.FieldLikesCount})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), v)

	_, found, err = repo.Recount(ctx, models.CounterRef{Kind: models.KindPost, ID: 999, Field: models.FieldLikesCount})
	require.NoError(t, err)
	assert.False(t, found)

	drift, err = repo.Drift(ctx, models.KindPost, models.FieldLikesCount)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestCounterRepository_AdjustClampsAtZero(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	c := &models.Comment{PostID: 1, UserID: 1, Text: "hi"}
	require.NoError(t, db.Create(c).Error)
	ref := models.CounterRef{Kind: models.KindComment, ID: c.ID, Field: models.FieldRepliesCount}

	applied, err := repo.Adjust(ctx, ref, -1)
	require.NoError(t, err)
	assert.True(t, applied)

	v, err := repo.Get(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestCounterRefs_CoversAllCounters(t *testing.T) {
	assert.Len(t, CounterRefs(), 6)
}
