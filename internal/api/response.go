package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
)

// Response builder functions for Fiber handlers.
// These provide a unified interface for API responses.

// RespondSuccess sends a successful response with data.
func RespondSuccess(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// RespondSuccessWithMeta sends a successful response with data and pagination metadata.
func RespondSuccessWithMeta(c *fiber.Ctx, data any, meta *APIMeta) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"meta":    meta,
	})
}

// RespondCreated sends a 201 Created response with data.
func RespondCreated(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// RespondError sends an error response with a custom status code.
func RespondError(c *fiber.Ctx, status int, code, message, details string) error {
	return c.Status(status).JSON(NewAPIErrorResponse(code, message, details))
}

// RespondBadRequest sends a 400 Bad Request error.
func RespondBadRequest(c *fiber.Ctx, message, details string) error {
	return RespondError(c, fiber.StatusBadRequest, ErrCodeBadRequest, message, details)
}

// RespondValidationError sends a 400 Bad Request error for validation failures.
func RespondValidationError(c *fiber.Ctx, message, details string) error {
	return RespondError(c, fiber.StatusBadRequest, ErrCodeValidation, message, details)
}

// RespondForbidden sends a 403 Forbidden error.
func RespondForbidden(c *fiber.Ctx, message, details string) error {
	return RespondError(c, fiber.StatusForbidden, ErrCodeForbidden, message, details)
}

// RespondNotFound sends a 404 Not Found error.
func RespondNotFound(c *fiber.Ctx, resource, details string) error {
	message := resource + " not found"
	return RespondError(c, fiber.StatusNotFound, ErrCodeNotFound, message, details)
}

// RespondConflict sends a 409 Conflict error.
func RespondConflict(c *fiber.Ctx, message, details string) error {
	return RespondError(c, fiber.StatusConflict, ErrCodeConflict, message, details)
}

// RespondInternalError sends a 500 Internal Server Error.
func RespondInternalError(c *fiber.Ctx, message, details string) error {
	return RespondError(c, fiber.StatusInternalServerError, ErrCodeInternalServer, message, details)
}

// RespondUpstreamError maps a failure of a remote call. Upstream statuses are
// passed through so the caller can tell a missing repository from an outage.
func RespondUpstreamError(c *fiber.Ctx, err error) error {
	var upstream *sharedErrors.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.Status
		if status < 400 {
			status = fiber.StatusBadGateway
		}
		return RespondError(c, status, ErrCodeUpstream, err.Error(), upstream.Snippet)
	}
	return RespondError(c, fiber.StatusBadGateway, ErrCodeUpstream, "Upstream request failed", err.Error())
}
