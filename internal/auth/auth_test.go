package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/skillvault/internal/database"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, tokenPrefix))
	assert.Len(t, a, len(tokenPrefix)+tokenLength)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
}

func TestAPIKeyMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyMiddleware("sekret"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		target string
		header map[string]string
		status int
	}{
		{name: "missing", target: "/", status: http.StatusUnauthorized},
		{name: "header", target: "/", header: map[string]string{"X-API-Key": "sekret"}, status: http.StatusOK},
		{name: "bearer", target: "/", header: map[string]string{"Authorization": "Bearer sekret"}, status: http.StatusOK},
		{name: "query", target: "/?apikey=sekret", status: http.StatusOK},
		{name: "wrong", target: "/", header: map[string]string{"X-API-Key": "nope"}, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPIKeyMiddleware_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyMiddleware(""))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestToolTokenMiddleware(t *testing.T) {
	db := database.NewTestDB(t)
	ctx := t.Context()

	token, conn, err := NewTokenService(db.Connections).CreateConnection(ctx, "user-1", "laptop", []string{"e1", " ", "e2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, conn.AllowedSkillIDs)

	app := fiber.New()
	app.Use(ToolTokenMiddleware(db.Connections))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetConnectionFromContext(c).UserID)
	})

	call := func(authHeader string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, body := call("Bearer " + token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1", body)

	stored, err := db.Connections.GetByTokenHash(ctx, HashToken(token))
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt)

	status, _ = call("")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call("Bearer svt_unknown")
	assert.Equal(t, http.StatusUnauthorized, status)

	require.NoError(t, db.Connections.Revoke(ctx, conn.ID))
	status, _ = call("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateConnection_RequiresUser(t *testing.T) {
	db := database.NewTestDB(t)
	_, _, err := NewTokenService(db.Connections).CreateConnection(t.Context(), "", "x", nil)
	assert.Error(t, err)
}
