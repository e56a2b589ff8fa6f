package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelhub/internal/cache"
	"reelhub/internal/config"
	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/repository"
	"reelhub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

// mockAssetStore records object deletes requested by cascades.
type mockAssetStore struct {
	mock.Mock
}

func (m *mockAssetStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type testEnv struct {
	db     *gorm.DB
	repos  *repository.Repositories
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	assets *mockAssetStore
	srv    *Server
	app    *fiber.App
	seq    int
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	assets := new(mockAssetStore)
	assets.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()

	cfg := &config.Config{
		JWTSecret:            testSecret,
		Port:                 "0",
		FeatureFlags:         flags,
		CascadeFanout:        4,
		CounterRetryAttempts: 2,
		CounterRetryBaseMS:   1,
	}
	srv, err := NewServerWithDeps(cfg, db, rdb, assets)
	require.NoError(t, err)
	t.Cleanup(func() { srv.closeStreams(context.Background()) })

	return &testEnv{
		db:     db,
		repos:  repository.New(db),
		mr:     mr,
		rdb:    rdb,
		assets: assets,
		srv:    srv,
		app:    srv.NewApp(),
	}
}

func (e *testEnv) user(t *testing.T, role string) *models.User {
	t.Helper()
	e.seq++
	u := &models.User{
		Name:  fmt.Sprintf("viewer%d", e.seq),
		Email: fmt.Sprintf("viewer%d@example.com", e.seq),
		Role:  role,
	}
	require.NoError(t, e.repos.Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := middleware.SignToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request as userID (0 sends no token) and returns the
// status and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body any, userID uint) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// decode unmarshals a response body into T.
func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func (e *testEnv) createPost(t *testing.T, owner *models.User) *models.Post {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/posts", map[string]any{
		"title":     fmt.Sprintf("clip %d", e.seq),
		"video_url": "gs://reelhub-test/videos/clip.mp4",
		"tags":      []string{"#Dance", "dance", "Music"},
	}, owner.ID)
	require.Equal(t, http.StatusCreated, status, string(raw))
	return decode[*models.Post](t, raw)
}

func (e *testEnv) approve(t *testing.T, postID uint, admin *models.User) {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/approve", postID), nil, admin.ID)
	require.Equal(t, http.StatusOK, status, string(raw))
}

func (e *testEnv) reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, id).Error)
	return &u
}

func (e *testEnv) reloadPost(t *testing.T, id uint) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, e.db.First(&p, id).Error)
	return &p
}
