package service

import (
	"context"
	"sync"
	"testing"

	"reelhub/internal/models"
	"reelhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipService_ToggleLikeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin)
	owner := f.user(t, models.RoleUser)
	fan := f.user(t, models.RoleUser)
	post := f.approvedPost(t, owner, admin)

	res, err := f.svc.Relationships.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)

	var notes []models.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", owner.ID, models.NotificationLike).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, fan.Name+" liked your post", notes[0].Message)

	res, err = f.svc.Relationships.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikesCount)

	var likes int64
	require.NoError(t, f.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	assert.Zero(t, likes)
	require.NoError(t, f.db.Model(&models.Notification{}).Where("type = ?", models.NotificationLike).Count(&likes).Error)
	assert.Zero(t, likes, "unlike retracts the notification")

	f.assertConsistent(t)
}

func TestRelationshipService_CreateLikeTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, models.RoleUser)
	post := f.post(t, owner)

	res, err := f.svc.Relationships.CreateRelationship(ctx, RelationLike, owner.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)

	res, err = f.svc.Relationships.CreateRelationship(ctx, RelationLike, owner.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(1), f.counter(t, models.KindPost, post.ID, models.FieldLikesCount))

	var notes int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&notes).Error)
	assert.Zero(t, notes, "liking your own post does not notify")

	_, err = f.svc.Relationships.CreateRelationship(ctx, RelationLike, owner.ID, 4040)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestRelationshipService_ConcurrentLikesFromTwoUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, models.RoleUser)
	a := f.user(t, models.RoleUser)
	b := f.user(t, models.RoleUser)
	post := f.post(t, owner)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []*models.User{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Relationships.ToggleLike(ctx, u.ID, post.ID)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(2), f.counter(t, models.KindPost, post.ID, models.FieldLikesCount))
	f.assertConsistent(t)
}

func TestRelationshipService_SelfFollowRejectedBeforeStoreAccess(t *testing.T) {
	t.Parallel()

	// Empty repositories: any store access would panic.
	svc := NewRelationshipService(&repository.Repositories{}, nil, nil, fastRetry())

	_, err := svc.Follow(context.Background(), 5, 5)
	assertAppErrorCode(t, err, models.CodeInvalidOperation)
	assert.Contains(t, err.Error(), "You can't follow yourself")
}

func TestRelationshipService_FollowLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, models.RoleUser)
	b := f.user(t, models.RoleUser)

	res, err := f.svc.Relationships.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotNil(t, res.Follow)

	_, err = f.svc.Relationships.Follow(ctx, a.ID, b.ID)
	assertAppErrorCode(t, err, models.CodeConflict)
	assert.Contains(t, err.Error(), "Already following this user")

	assert.Equal(t, int64(1), f.counter(t, models.KindUser, b.ID, models.FieldFollowersCount))
	assert.Equal(t, int64(1), f.counter(t, models.KindUser, a.ID, models.FieldFollowingCount))

	var follows int64
	require.NoError(t, f.db.Model(&models.Follow{}).Count(&follows).Error)
	assert.Equal(t, int64(1), follows)

	followers, err := f.svc.Relationships.Followers(ctx, b.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	_, err = f.svc.Relationships.Follow(ctx, a.ID, 9999)
	assertAppErrorCode(t, err, models.CodeNotFound)

	un, err := f.svc.Relationships.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, un.Removed)

	un, err = f.svc.Relationships.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, un.Removed)

	_, err = f.svc.Relationships.Unfollow(ctx, a.ID, 9999)
	assertAppErrorCode(t, err, models.CodeNotFound)

	assert.Zero(t, f.counter(t, models.KindUser, b.ID, models.FieldFollowersCount))
	assert.Zero(t, f.counter(t, models.KindUser, a.ID, models.FieldFollowingCount))

	var notes int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&notes).Error)
	assert.Zero(t, notes)
	f.assertConsistent(t)
}

func TestRelationshipService_ConcurrentDuplicateFollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, models.RoleUser)
	b := f.user(t, models.RoleUser)

	const n = 4
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.Relationships.Follow(ctx, a.ID, b.ID)
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range results {
		if err == nil {
			created++
			continue
		}
		assertAppErrorCode(t, err, models.CodeConflict)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), f.counter(t, models.KindUser, b.ID, models.FieldFollowersCount))
	f.assertConsistent(t)
}

func TestDeletedAccountCannotWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin)
	gone := f.user(t, models.RoleUser)
	v := f.user(t, models.RoleUser)
	post := f.approvedPost(t, v, admin)
	c, err := f.svc.Comments.CreateComment(ctx, CreateCommentInput{UserID: v.ID, PostID: post.ID, Text: "mine"})
	require.NoError(t, err)

	_, err = f.svc.Cascade.DeleteUser(ctx, gone.ID)
	require.NoError(t, err)

	_, err = f.svc.Relationships.Follow(ctx, gone.ID, v.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.Relationships.ToggleLike(ctx, gone.ID, post.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.Comments.CreateComment(ctx, CreateCommentInput{UserID: gone.ID, PostID: post.ID, Text: "ghost"})
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.Comments.CreateReply(ctx, CreateReplyInput{UserID: gone.ID, CommentID: c.ID, Text: "ghost"})
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.Posts.CreatePost(ctx, CreatePostInput{UserID: gone.ID, Title: "Ghost ride", VideoURL: "https://cdn.example.com/g.mp4"})
	assertAppErrorCode(t, err, models.CodeNotFound)

	assert.Zero(t, f.counter(t, models.KindUser, v.ID, models.FieldFollowersCount))
	assert.Zero(t, f.counter(t, models.KindPost, post.ID, models.FieldLikesCount))
	assert.Equal(t, int64(1), f.counter(t, models.KindPost, post.ID, models.FieldCommentsCount))
	assert.Zero(t, f.counter(t, models.KindComment, c.ID, models.FieldRepliesCount))
	assert.Empty(t, refsTo(t, f, gone.ID))
	f.assertConsistent(t)
}
