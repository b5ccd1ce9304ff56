package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/adapter"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/importer"
)

// handleImport handles POST /import. The import runs synchronously; the
// response carries the session log in both the success and failure case.
func (s *Server) handleImport(c *fiber.Ctx) error {
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, ErrMsgBadRequest, err.Error())
	}
	if len(req.Hit) == 0 {
		return RespondValidationError(c, ErrMsgValidation, "hit is required")
	}

	userID := req.UserID
	if userID == "" {
		userID = s.config.DefaultUserID
	}

	descriptor := adapter.Adapt(req.Hit)
	session := s.importer.NewSession()

	result, err := s.importer.Import(c.UserContext(), session, importer.ImportRequest{
		Descriptor: descriptor,
		Tags:       req.Tags,
		UserID:     userID,
	})
	if err != nil {
		failedStep := sharedErrors.StepOf(err)
		return c.Status(importFailureStatus(err)).JSON(fiber.Map{
			"success": false,
			"error":   NewAPIError(ErrCodeImportFailed, err.Error(), failedStep),
			"data":    result,
		})
	}

	return RespondCreated(c, result)
}

func importFailureStatus(err error) int {
	var upstream *sharedErrors.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fiber.StatusBadGateway
	case errors.Is(err, sharedErrors.ErrArchiveFormat),
		errors.Is(err, sharedErrors.ErrEmptyDownload),
		errors.Is(err, sharedErrors.ErrInvalidURL):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// handleGetProgress handles GET /imports/progress
func (s *Server) handleGetProgress(c *fiber.Ctx) error {
	if s.broadcaster == nil {
		return RespondSuccess(c, map[string]int{})
	}
	return RespondSuccess(c, s.broadcaster.GetAllProgress())
}
