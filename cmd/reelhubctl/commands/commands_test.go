package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"reelhub/internal/bootstrap"
	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/seed"
	"reelhub/internal/service"
	"reelhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type cliEnv struct {
	db   *gorm.DB
	svc  *service.Services
	opts []bootstrap.Options
}

// newCLIEnv points every command at a fresh sqlite database.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	ce := &cliEnv{db: db, svc: service.New(repository.New(db), service.Options{})}

	prev := openEnv
	openEnv = func(_ context.Context, opts bootstrap.Options) (*env, error) {
		ce.opts = append(ce.opts, opts)
		return &env{db: ce.db, svc: ce.svc}, nil
	}
	t.Cleanup(func() { openEnv = prev })
	return ce
}

// run executes reelhubctl with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputFormat = "text"
	auditFix, auditFailOnDrift = false, false
	orphansCleanup = false
	seedOpts = seed.DefaultOptions()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func (ce *cliEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := ce.svc.Users.CreateUser(context.Background(), service.CreateUserInput{
		Name:  name,
		Email: name + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func (ce *cliEnv) likedPost(t *testing.T) *models.Post {
	t.Helper()
	ctx := context.Background()
	owner := ce.user(t, "owner")
	fan := ce.user(t, "fan")
	p, err := ce.svc.Posts.CreatePost(ctx, service.CreatePostInput{
		UserID:   owner.ID,
		Title:    "first clip",
		VideoURL: "gs://reelhub-test/videos/first.mp4",
	})
	require.NoError(t, err)
	_, err = ce.svc.Relationships.ToggleLike(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	return p
}

func TestAudit_ReportsAndFixesDrift(t *testing.T) {
	ce := newCLIEnv(t)
	post := ce.likedPost(t)
	require.NoError(t, ce.db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 4).Error)

	out, err := run(t, "audit", "-o", "json")
	require.NoError(t, err)
	var report service.AuditReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, service.Discrepancy{
		EntityKind: models.KindPost, EntityID: post.ID, Field: models.FieldLikesCount, Stored: 4, Actual: 1,
	}, report.Discrepancies[0])
	assert.True(t, ce.opts[0].SkipAssets)

	_, err = run(t, "audit", "--fail-on-drift")
	assert.ErrorIs(t, err, ErrDriftFound)

	out, err = run(t, "audit", "--fix", "--fail-on-drift")
	require.NoError(t, err)
	assert.Contains(t, out, "Fixed 1 of 1 counters.")

	var stored int64
	require.NoError(t, ce.db.Model(&models.Post{}).Where("id = ?", post.ID).Pluck("likes_count", &stored).Error)
	assert.Equal(t, int64(1), stored)

	out, err = run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No counter drift.")
}

func TestOrphans_ListAndCleanup(t *testing.T) {
	ce := newCLIEnv(t)
	post := ce.likedPost(t)
	require.NoError(t, ce.db.Create(&models.Like{PostID: post.ID, UserID: 9000}).Error)

	out, err := run(t, "orphans", "-o", "yaml")
	require.NoError(t, err)
	var res orphansResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Orphans[models.KindLike], 1)
	assert.Empty(t, res.Cleaned)

	out, err = run(t, "orphans", "--cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "like")

	out, err = run(t, "orphans")
	require.NoError(t, err)
	assert.Contains(t, out, "No orphaned rows.")
}

func TestDeleteUser_PrintsReport(t *testing.T) {
	ce := newCLIEnv(t)
	post := ce.likedPost(t)

	out, err := run(t, "delete-user", "1", "-o", "json")
	require.NoError(t, err)
	report := &service.DeletionReport{}
	require.NoError(t, json.Unmarshal([]byte(out), report))
	assert.Equal(t, models.KindUser, report.Kind)
	assert.Equal(t, int64(1), report.Removed[models.KindPost])

	var n int64
	require.NoError(t, ce.db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&n).Error)
	assert.Zero(t, n)

	_, err = run(t, "delete-user", "1")
	assert.True(t, models.IsNotFound(err), "got %v", err)
}

func TestPromote(t *testing.T) {
	ce := newCLIEnv(t)
	u := ce.user(t, "mod")

	out, err := run(t, "promote", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "is now an admin")

	admin, err := ce.svc.Users.IsAdmin(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, admin)

	_, err = run(t, "promote", "99")
	assert.True(t, models.IsNotFound(err), "got %v", err)
}

func TestUserIDArgument(t *testing.T) {
	newCLIEnv(t)
	for _, arg := range []string{"0", "abc", "1x"} {
		_, err := run(t, "promote", arg)
		assert.ErrorContains(t, err, "invalid user id", arg)
	}
	_, err := run(t, "delete-user")
	assert.Error(t, err)
}

func TestSeed_ThenAuditIsClean(t *testing.T) {
	ce := newCLIEnv(t)

	out, err := run(t, "seed", "--users", "4", "--posts", "5", "--seed", "3", "-o", "json")
	require.NoError(t, err)
	var sum seed.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 4, sum.Users)
	assert.Equal(t, 5, sum.Posts)
	assert.True(t, ce.opts[0].Migrate)

	out, err = run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No counter drift.")
}

func TestMigrate(t *testing.T) {
	ce := newCLIEnv(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations complete.")
	require.Len(t, ce.opts, 1)
	assert.True(t, ce.opts[0].Migrate)
}

func TestRender_UnknownFormat(t *testing.T) {
	newCLIEnv(t)
	_, err := run(t, "audit", "-o", "xml")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}
