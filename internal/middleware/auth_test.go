package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxxcyber/equiptrack/internal/config"
	"github.com/foxxcyber/equiptrack/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}
}

func newTestApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthRequired(cfg), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": GetUserID(c), "role": GetUserRole(c)})
	})
	app.Get("/admin", AuthRequired(cfg), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func request(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig()
	app := newTestApp(cfg)

	token, err := GenerateToken(cfg, &models.User{ID: 7, Email: "tec@example.com", Role: models.RoleUser})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, request(t, app, "/me", token))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", "not-a-token"))
}

func TestAuthRequired_RejectsBadFormat(t *testing.T) {
	app := newTestApp(testConfig())

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_RejectsForeignSecret(t *testing.T) {
	app := newTestApp(testConfig())

	other := &config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour}
	token, err := GenerateToken(other, &models.User{ID: 7, Role: models.RoleUser})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", token))
}

func TestAuthRequired_RejectsExpired(t *testing.T) {
	cfg := testConfig()
	app := newTestApp(cfg)

	claims := &JWTClaims{
		UserID: 7,
		Role:   models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", token))
}

func TestAdminRequired(t *testing.T) {
	cfg := testConfig()
	app := newTestApp(cfg)

	userToken, err := GenerateToken(cfg, &models.User{ID: 1, Role: models.RoleUser})
	require.NoError(t, err)
	adminToken, err := GenerateToken(cfg, &models.User{ID: 2, Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/admin", userToken))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, "/admin", adminToken))
}
