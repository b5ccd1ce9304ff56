package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/relay"
)

// handleSearch handles GET /search
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return RespondValidationError(c, "Query is required", "q must not be empty")
	}

	results, err := s.searcher.SearchResults(c.UserContext(), query)
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Search failed", "query", query, "error", err)
		return RespondUpstreamError(c, err)
	}
	if results == nil {
		results = []adapter.ScrapeResult{}
	}

	return RespondSuccessWithMeta(c, results, &APIMeta{Total: len(results), Count: len(results)})
}

// handleSearchSkill handles GET /search/skills/:id, the upstream detail document for one hit
func (s *Server) handleSearchSkill(c *fiber.Ctx) error {
	id := c.Params("id")
	details, err := s.searcher.SkillDetails(c.UserContext(), id)
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Skill details failed", "id", id, "error", err)
		return RespondUpstreamError(c, err)
	}

	return RespondSuccess(c, details)
}

// handlePreview handles POST /preview. The body is a raw search hit.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	var hit adapter.RawHit
	if err := c.BodyParser(&hit); err != nil {
		return RespondBadRequest(c, ErrMsgBadRequest, err.Error())
	}

	result := adapter.Adapt(hit)
	outcome := s.previewer.Discover(c.UserContext(), result)

	return RespondSuccess(c, fiber.Map{
		"result":  result,
		"preview": outcome,
	})
}

// handlePreviewFile handles POST /preview/file, used when a listing entry is opened
func (s *Server) handlePreviewFile(c *fiber.Ctx) error {
	var req PreviewFileRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, ErrMsgBadRequest, err.Error())
	}
	if !relay.ValidTarget(req.DownloadURL) {
		return RespondValidationError(c, "download_url must be an http(s) URL", req.DownloadURL)
	}

	name := req.Name
	if name == "" {
		name = req.DownloadURL[strings.LastIndex(req.DownloadURL, "/")+1:]
	}

	outcome := s.previewer.PreviewFile(c.UserContext(), relay.ListingEntry{
		Name:        name,
		Type:        "file",
		DownloadURL: req.DownloadURL,
	})
	return RespondSuccess(c, outcome)
}
