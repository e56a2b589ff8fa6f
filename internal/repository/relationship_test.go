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
)

func TestLikeRepository_InsertUsesOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "likes"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("user_id","post_id") DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	_, created, err := repo.Insert(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, created, "no returned row means the like already existed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_InsertIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	like, created, err := repo.Insert(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, like.ID)

	_, created, err = repo.Insert(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := repo.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, n, "deleting twice is a no-op")
}

func TestFollowRepository_InsertAndListSides(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	a := &models.User{Name: "alice", Email: "a@example.com"}
	b := &models.User{Name: "bob", Email: "b@example.com"}
	require.NoError(t, db.Create(a).Error)
	require.NoError(t, db.Create(b).Error)

	_, created, err := repo.Insert(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = repo.Insert(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	followers, err := repo.Followers(ctx, b.ID, Page{})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	following, err := repo.Following(ctx, a.ID, Page{})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].ID)

	both, err := repo.FindByUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestNotificationRepository_DeleteMatching(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	postID, commentID := uint(3), uint(4)
	sender := uint(2)
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: 1, SenderID: &sender, Type: models.NotificationLike, PostID: &postID}))
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: 1, SenderID: &sender, Type: models.NotificationComment, PostID: &postID, CommentID: &commentID}))

	_, err := repo.DeleteMatching(ctx, NotificationMatch{})
	assert.Error(t, err, "an empty match must never wipe the table")

	n, err := repo.DeleteMatching(ctx, NotificationMatch{Type: models.NotificationLike, SenderID: sender, PostID: postID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteMatching(ctx, NotificationMatch{CommentID: commentID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuditRepository_FindOrphans(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	u := &models.User{Name: "u1", Email: "u1@example.com"}
	require.NoError(t, db.Create(u).Error)
	p := &models.Post{OwnerID: u.ID, Title: "clip", VideoURL: "gs://b/v"}
	require.NoError(t, db.Create(p).Error)
	live := &models.Comment{PostID: p.ID, UserID: u.ID, Text: "ok"}
	require.NoError(t, db.Create(live).Error)
	orphanReply := &models.Reply{CommentID: 404, UserID: u.ID, Text: "lost"}
	require.NoError(t, db.Create(orphanReply).Error)
	require.NoError(t, db.Create(&models.Reply{CommentID: live.ID, UserID: u.ID, Text: "kept"}).Error)

	ids, err := repo.FindOrphans(ctx, models.KindReply, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{orphanReply.ID}, ids)

	ids, err = repo.FindOrphans(ctx, models.KindComment, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := repo.DeleteRows(ctx, models.KindReply, []uint{orphanReply.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, models.KindPost, OrphanKinds()[0])
}

func TestAuditRepository_FindOrphans_MissingAuthor(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	owner := &models.User{Name: "owner", Email: "owner@example.com"}
	require.NoError(t, db.Create(owner).Error)
	p := &models.Post{OwnerID: owner.ID, Title: "clip", VideoURL: "gs://b/v"}
	require.NoError(t, db.Create(p).Error)
	live := &models.Comment{PostID: p.ID, UserID: owner.ID, Text: "ok"}
	require.NoError(t, db.Create(live).Error)

	ghostComment := &models.Comment{PostID: p.ID, UserID: 999, Text: "gone"}
	require.NoError(t, db.Create(ghostComment).Error)
	ghostReply := &models.Reply{CommentID: live.ID, UserID: 999, Text: "gone"}
	require.NoError(t, db.Create(ghostReply).Error)
	ghostLog := &models.ModerationLog{PostID: p.ID, AdminID: 999, Action: models.ModerationApprove}
	require.NoError(t, db.Create(ghostLog).Error)

	ids, err := repo.FindOrphans(ctx, models.KindComment, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{ghostComment.ID}, ids)

	ids, err = repo.FindOrphans(ctx, models.KindReply, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{ghostReply.ID}, ids)

	ids, err = repo.FindOrphans(ctx, models.KindModerationLog, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{ghostLog.ID}, ids)
}
