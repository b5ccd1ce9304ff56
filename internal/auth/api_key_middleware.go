package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/javi11/skillvault/internal/database"
)

// ConnectionStore looks up tool connections by token digest
type ConnectionStore interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*database.ToolConnection, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// APIKeyMiddleware protects the UI-facing API with a static key.
// The key is read from the apikey query param, X-API-Key or a bearer token.
// An empty configured key disables the check.
func APIKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}

		apiKey := c.Query("apikey")
		if apiKey == "" {
			apiKey = c.Get("X-API-Key")
			if apiKey == "" {
				apiKey = bearerToken(c)
			}
		}

		if apiKey == "" {
			return unauthorized(c, "Authentication required", "Please provide an API key")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
			return unauthorized(c, "Invalid API key", "")
		}

		return c.Next()
	}
}

// ToolTokenMiddleware authenticates tool-integration requests by bearer token.
// The token's digest must match a connection that has not been revoked.
func ToolTokenMiddleware(store ConnectionStore) fiber.Handler {
	log := slog.Default().With("component", "tool-auth")

	return func(c *fiber.Ctx) error {
		if store == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Authentication service unavailable",
			})
		}

		token := bearerToken(c)
		if token == "" {
			return unauthorized(c, "Missing bearer token", "")
		}

		conn, err := store.GetByTokenHash(c.UserContext(), HashToken(token))
		if err != nil {
			log.ErrorContext(c.UserContext(), "Token lookup failed", "error", err)
			return unauthorized(c, "Invalid token", "")
		}
		if conn == nil || conn.IsRevoked() {
			return unauthorized(c, "Invalid token", "")
		}

		if err := store.TouchLastUsed(c.UserContext(), conn.ID); err != nil {
			log.WarnContext(c.UserContext(), "Failed to record token use", "connection_id", conn.ID, "error", err)
		}

		c.Locals(string(ConnectionContextKey), conn)
		return c.Next()
	}
}
