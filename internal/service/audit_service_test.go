package service

import (
	"context"
	"math/rand"
	"testing"

	"reelhub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_DetectsAndFixesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin)
	owner := f.user(t, models.RoleUser)
	post := f.approvedPost(t, owner, admin)

	_, err := f.svc.Relationships.ToggleLike(ctx, admin.ID, post.ID)
	require.NoError(t, err)

	// Simulate drift left behind by a crashed writer.
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 7).Error)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", owner.ID).UpdateColumn("posts_count", 0).Error)

	drift, err := f.svc.Audit.AuditAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Discrepancy{
		{EntityKind: models.KindPost, EntityID: post.ID, Field: models.FieldLikesCount, Stored: 7, Actual: 1},
		{EntityKind: models.KindUser, EntityID: owner.ID, Field: models.FieldPostsCount, Stored: 0, Actual: 1},
	}, drift)

	report, err := f.svc.Audit.Run(ctx, false)
	require.NoError(t, err)
	assert.Len(t, report.Discrepancies, 2)
	assert.Zero(t, report.Fixed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(7), f.counter(t, models.KindPost, post.ID, models.FieldLikesCount), "report-only run writes nothing")

	report, err = f.svc.Audit.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fixed)
	assert.Equal(t, int64(1), f.counter(t, models.KindPost, post.ID, models.FieldLikesCount))
	f.assertConsistent(t)
}

func TestAuditService_FixUsesLiveCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, models.RoleUser)
	fan := f.user(t, models.RoleUser)
	post := f.post(t, owner)

	stale := Discrepancy{EntityKind: models.KindPost, EntityID: post.ID, Field: models.FieldLikesCount, Stored: 5, Actual: 0}
	_, err := f.svc.Relationships.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)

	v, err := f.svc.Audit.Fix(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = f.svc.Audit.Fix(ctx, Discrepancy{EntityKind: models.KindPost, EntityID: 999, Field: models.FieldLikesCount})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestAuditService_CleansOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)
	post := f.post(t, u)

	// Rows whose parents vanished outside the cascade.
	require.NoError(t, f.db.Create(&models.Comment{PostID: 5000, UserID: u.ID, Text: "ghost"}).Error)
	require.NoError(t, f.db.Create(&models.Like{PostID: post.ID, UserID: 6000}).Error)
	require.NoError(t, f.db.Create(&models.Follow{FollowerID: u.ID, FollowingID: 7000}).Error)

	orphans, err := f.svc.Audit.FindOrphans(ctx)
	require.NoError(t, err)
	assert.Len(t, orphans[models.KindComment], 1)
	assert.Len(t, orphans[models.KindLike], 1)
	assert.Len(t, orphans[models.KindFollow], 1)

	report, err := f.svc.Audit.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Cleaned[models.KindComment])
	assert.Equal(t, int64(1), report.Cleaned[models.KindLike])
	assert.Equal(t, int64(1), report.Cleaned[models.KindFollow])
	f.assertConsistent(t)
}

// TestAuditService_ChurnLeavesNoDrift runs a random mix of every mutating
// operation and expects the audit to come back clean.
func TestAuditService_ChurnLeavesNoDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	faker := gofakeit.New(42)

	admin := f.user(t, models.RoleAdmin)
	users := []*models.User{admin}
	for range 5 {
		users = append(users, f.user(t, models.RoleUser))
	}
	var posts []*models.Post
	for i := range 6 {
		p := f.post(t, users[1+i%5])
		posts = append(posts, p)
	}

	pickUser := func() *models.User { return users[rng.Intn(len(users))] }
	pickPost := func() uint { return posts[rng.Intn(len(posts))].ID }
	pickComment := func() (uint, bool) {
		var ids []uint
		require.NoError(t, f.db.Model(&models.Comment{}).Pluck("id", &ids).Error)
		if len(ids) == 0 {
			return 0, false
		}
		return ids[rng.Intn(len(ids))], true
	}
	pickReply := func() (uint, bool) {
		var ids []uint
		require.NoError(t, f.db.Model(&models.Reply{}).Pluck("id", &ids).Error)
		if len(ids) == 0 {
			return 0, false
		}
		return ids[rng.Intn(len(ids))], true
	}

	tolerated := func(err error) {
		t.Helper()
		if err == nil {
			return
		}
		switch models.ErrorCode(err) {
		case models.CodeNotFound, models.CodeConflict, models.CodeInvalidOperation:
			return
		}
		t.Fatalf("unexpected error: %v", err)
	}

	for range 300 {
		switch rng.Intn(10) {
		case 0, 1:
			_, err := f.svc.Relationships.ToggleLike(ctx, pickUser().ID, pickPost())
			tolerated(err)
		case 2:
			_, err := f.svc.Relationships.Follow(ctx, pickUser().ID, pickUser().ID)
			tolerated(err)
		case 3:
			_, err := f.svc.Relationships.Unfollow(ctx, pickUser().ID, pickUser().ID)
			tolerated(err)
		case 4:
			_, err := f.svc.Comments.CreateComment(ctx, CreateCommentInput{UserID: pickUser().ID, PostID: pickPost(), Text: faker.Sentence(6)})
			tolerated(err)
		case 5:
			if cid, ok := pickComment(); ok {
				_, err := f.svc.Comments.CreateReply(ctx, CreateReplyInput{UserID: pickUser().ID, CommentID: cid, Text: faker.Sentence(4)})
				tolerated(err)
			}
		case 6:
			if rid, ok := pickReply(); ok {
				_, err := f.svc.Comments.DeleteReply(ctx, DeleteReplyInput{UserID: admin.ID, ReplyID: rid})
				tolerated(err)
			}
		case 7:
			if cid, ok := pickComment(); ok && rng.Intn(2) == 0 {
				_, err := f.svc.Comments.DeleteComment(ctx, DeleteCommentInput{UserID: admin.ID, CommentID: cid})
				tolerated(err)
			}
		case 8:
			_, err := f.svc.Posts.ApprovePost(ctx, pickPost(), admin.ID)
			tolerated(err)
		case 9:
			if rng.Intn(4) == 0 {
				_, err := f.svc.Posts.RejectPost(ctx, ModerationInput{AdminID: admin.ID, PostID: pickPost(), Reason: faker.Word()})
				tolerated(err)
			} else if rng.Intn(8) == 0 {
				idx := rng.Intn(len(posts))
				_, err := f.svc.Posts.DeletePost(ctx, DeletePostInput{UserID: admin.ID, PostID: posts[idx].ID})
				tolerated(err)
				if len(posts) > 1 {
					posts = append(posts[:idx], posts[idx+1:]...)
				}
			}
		}
	}

	f.assertConsistent(t)
}
