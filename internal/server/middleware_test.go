package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelhub/internal/config"
	"reelhub/internal/middleware"
	"reelhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	s := &Server{
		config: &config.Config{JWTSecret: testSecret},
	}
	app := fiber.New()

	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": currentUserID(c)})
	})

	generateToken := func(sub, issuer, audience string, exp time.Duration) string {
		claims := jwt.MapClaims{
			"sub": sub,
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti-valid-length",
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		str, _ := token.SignedString([]byte(testSecret))
		return str
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			authHeader:     "Bearer " + generateToken("123", middleware.TokenIssuer, middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + generateToken("123", middleware.TokenIssuer, middleware.TokenAudience, -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			authHeader:     "Bearer " + generateToken("123", "wrong-issuer", middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			authHeader:     "Bearer " + generateToken("123", middleware.TokenIssuer, "wrong-audience", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Non-numeric Subject",
			authHeader:     "Bearer " + generateToken("abc", middleware.TokenIssuer, middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			authHeader:     "Token abc",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestServer_AuthRequired_RevokedToken(t *testing.T) {
	env := newTestEnv(t, "")
	u := env.user(t, models.RoleUser)

	token, err := middleware.SignToken(testSecret, u.ID, time.Hour)
	require.NoError(t, err)
	claims, err := middleware.ParseToken(testSecret, token)
	require.NoError(t, err)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send())

	require.NoError(t, env.mr.Set("blacklist:"+claims.JTI, "1"))
	assert.Equal(t, http.StatusUnauthorized, send())
}

func TestServer_AdminRequired(t *testing.T) {
	env := newTestEnv(t, "")
	user := env.user(t, models.RoleUser)
	admin := env.user(t, models.RoleAdmin)

	status, raw := env.do(t, http.MethodGet, "/api/admin/posts/stats", nil, user.ID)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, decode[models.ErrorResponse](t, raw).Code)

	status, _ = env.do(t, http.MethodGet, "/api/admin/posts/stats", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/admin/posts/stats", nil, admin.ID)
	assert.Equal(t, http.StatusOK, status)

	// A valid token for a user that no longer exists is not an admin.
	status, _ = env.do(t, http.MethodGet, "/api/admin/posts/stats", nil, admin.ID+100)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")

	status, raw := env.do(t, http.MethodGet, "/health/live", nil, 0)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"up"`)

	status, raw = env.do(t, http.MethodGet, "/health/ready", nil, 0)
	assert.Equal(t, http.StatusOK, status)
	body := decode[map[string]any](t, raw)
	assert.Equal(t, "healthy", body["status"])

	// Without a cache the service is degraded but still ready.
	env.srv.redis = nil
	status, raw = env.do(t, http.MethodGet, "/health/ready", nil, 0)
	assert.Equal(t, http.StatusOK, status)
	body = decode[map[string]any](t, raw)
	assert.Equal(t, "degraded", body["status"])

	status, _ = env.do(t, http.MethodGet, "/metrics", nil, 0)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_RequestIDAndTraceHeaders(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}
