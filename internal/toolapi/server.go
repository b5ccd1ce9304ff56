// Package toolapi is the read-only surface external tools use to list and
// load the skills a connection token was granted.
package toolapi

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/auth"
	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/retrieval"
)

const (
	defaultMaxAttachmentBytes = 512_000
	defaultMaxFiles           = 2000
)

// Config holds the load-skill defaults used when a request does not set them
type Config struct {
	MaxAttachmentBytes int64
	MaxFiles           int
}

// CatalogReader is the part of the catalog store the tool surface reads
type CatalogReader interface {
	GetEntry(ctx context.Context, id string) (*database.CatalogEntry, error)
	ListEntriesByIDs(ctx context.Context, userID string, ids []string) ([]*database.CatalogEntry, error)
	ListNodes(ctx context.Context, entryID string) ([]*database.ArchiveNode, error)
}

// CategoryReader resolves normalized categories
type CategoryReader interface {
	GetByID(ctx context.Context, id string) (*database.Category, error)
	GetBySlug(ctx context.Context, slug string) (*database.Category, error)
}

// ContentReader extracts node content
type ContentReader interface {
	ReadNode(ctx context.Context, node *database.ArchiveNode) (*retrieval.Content, error)
}

// Server serves the tool-integration endpoints
type Server struct {
	config      Config
	connections auth.ConnectionStore
	catalog     CatalogReader
	categories  CategoryReader
	reader      ContentReader
	logger      *slog.Logger
}

// NewServer creates a tool API server
func NewServer(
	config Config,
	connections auth.ConnectionStore,
	catalog CatalogReader,
	categories CategoryReader,
	reader ContentReader,
) *Server {
	if config.MaxAttachmentBytes <= 0 {
		config.MaxAttachmentBytes = defaultMaxAttachmentBytes
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = defaultMaxFiles
	}

	return &Server{
		config:      config,
		connections: connections,
		catalog:     catalog,
		categories:  categories,
		reader:      reader,
		logger:      slog.Default().With("component", "toolapi"),
	}
}

// RegisterRoutes registers the tool routes on a router group. Every route
// requires a connection token.
func (s *Server) RegisterRoutes(r fiber.Router) {
	r.Use(auth.ToolTokenMiddleware(s.connections))

	r.Get("/categories", s.handleListCategories)
	r.Get("/skills", s.handleListSkills)
	r.Get("/skill-description", s.handleSkillDescription)
	r.Post("/load-skill", s.handleLoadSkill)
}

// allowedEntries returns the granted entries that belong to the connection's user
func (s *Server) allowedEntries(ctx context.Context, conn *database.ToolConnection) ([]*database.CatalogEntry, error) {
	if len(conn.AllowedSkillIDs) == 0 {
		return []*database.CatalogEntry{}, nil
	}
	return s.catalog.ListEntriesByIDs(ctx, conn.UserID, conn.AllowedSkillIDs)
}
