package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/indexer"
)

// handleListSkills handles GET /skills?user_id=&limit=&offset=
func (s *Server) handleListSkills(c *fiber.Ctx) error {
	entries, err := s.catalog.ListEntries(c.UserContext(), c.Query("user_id"))
	if err != nil {
		return RespondInternalError(c, "Failed to list skills", err.Error())
	}

	total := len(entries)
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 {
		limit = 50
	}
	offset = max(0, min(offset, total))
	end := min(offset+limit, total)

	page := entries[offset:end]
	if page == nil {
		page = []*database.CatalogEntry{}
	}

	return RespondSuccessWithMeta(c, page, &APIMeta{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Count:  len(page),
	})
}

// lookupEntry loads the :id entry, sending the error response itself when it fails
func (s *Server) lookupEntry(c *fiber.Ctx) (*database.CatalogEntry, bool, error) {
	entry, err := s.catalog.GetEntry(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, false, RespondInternalError(c, "Failed to load skill", err.Error())
	}
	if entry == nil {
		return nil, false, RespondNotFound(c, "Skill", c.Params("id"))
	}
	return entry, true, nil
}

// handleGetSkill handles GET /skills/:id
func (s *Server) handleGetSkill(c *fiber.Ctx) error {
	entry, ok, err := s.lookupEntry(c)
	if !ok {
		return err
	}

	count, err := s.catalog.CountNodes(c.UserContext(), entry.ID)
	if err != nil {
		return RespondInternalError(c, "Failed to count nodes", err.Error())
	}

	return RespondSuccess(c, SkillDetail{CatalogEntry: entry, NodeCount: count})
}

// handleListNodes handles GET /skills/:id/nodes?dir=
// Children are matched by parent-path equality; an empty dir lists the root.
func (s *Server) handleListNodes(c *fiber.Ctx) error {
	entry, ok, err := s.lookupEntry(c)
	if !ok {
		return err
	}

	dir := strings.TrimPrefix(c.Query("dir"), "/")
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	nodes, err := s.catalog.ListChildren(c.UserContext(), entry.ID, dir)
	if err != nil {
		return RespondInternalError(c, "Failed to list nodes", err.Error())
	}
	if nodes == nil {
		nodes = []*database.ArchiveNode{}
	}

	return RespondSuccess(c, nodes)
}

// handleGetContent handles GET /skills/:id/content?path=
// Text is returned inline, anything else as an attachment.
func (s *Server) handleGetContent(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return RespondValidationError(c, "path is required", "")
	}

	entry, ok, err := s.lookupEntry(c)
	if !ok {
		return err
	}

	node, err := s.catalog.GetNodeByPath(c.UserContext(), entry.ID, path)
	if err != nil {
		return RespondInternalError(c, "Failed to load node", err.Error())
	}
	if node == nil {
		return RespondNotFound(c, "Node", path)
	}

	content, err := s.reader.ReadNode(c.UserContext(), node)
	if err != nil {
		if errors.Is(err, sharedErrors.ErrContentNotLocatable) {
			return RespondError(c, fiber.StatusUnprocessableEntity, ErrCodeNotLocatable,
				"Content cannot be located in the stored archive", err.Error())
		}
		s.logger.ErrorContext(c.UserContext(), "Failed to read node", "entry_id", entry.ID, "path", path, "error", err)
		return RespondInternalError(c, "Failed to read content", err.Error())
	}

	if content.IsText {
		contentType := content.ContentType
		if contentType == indexer.DefaultContentType {
			contentType = fiber.MIMETextPlain
		}
		c.Set(fiber.HeaderContentType, contentType+"; charset=utf-8")
		return c.Send(content.Data)
	}

	c.Attachment(content.Name)
	c.Set(fiber.HeaderContentType, content.ContentType)
	return c.Send(content.Data)
}
