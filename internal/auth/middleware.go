package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/javi11/skillvault/internal/database"
)

// contextKey is the key type for values stored in fiber locals
type contextKey string

// ConnectionContextKey holds the authenticated *database.ToolConnection
const ConnectionContextKey contextKey = "tool_connection"

// GetConnectionFromContext returns the tool connection authenticated for this request
func GetConnectionFromContext(c *fiber.Ctx) *database.ToolConnection {
	conn, ok := c.Locals(string(ConnectionContextKey)).(*database.ToolConnection)
	if !ok {
		return nil
	}
	return conn
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message, details string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": message,
			"details": details,
		},
	})
}
