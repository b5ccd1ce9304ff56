// Package api provides the UI-facing HTTP surface: search, preview, import and
// browsing of imported skills.
package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/auth"
	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/discovery"
	"github.com/javi11/skillvault/internal/importer"
	"github.com/javi11/skillvault/internal/progress"
	"github.com/javi11/skillvault/internal/relay"
	"github.com/javi11/skillvault/internal/retrieval"
)

// Config represents API server configuration
type Config struct {
	APIKey        string // Optional static key; empty disables the check
	DefaultUserID string
}

// Searcher finds and adapts search hits
type Searcher interface {
	SearchResults(ctx context.Context, query string) ([]adapter.ScrapeResult, error)
	SkillDetails(ctx context.Context, id string) (map[string]any, error)
}

// Previewer produces pre-import previews
type Previewer interface {
	Discover(ctx context.Context, result adapter.ScrapeResult) discovery.Outcome
	PreviewFile(ctx context.Context, entry relay.ListingEntry) discovery.Outcome
}

// CatalogReader is the browsing side of the catalog store
type CatalogReader interface {
	GetEntry(ctx context.Context, id string) (*database.CatalogEntry, error)
	ListEntries(ctx context.Context, userID string) ([]*database.CatalogEntry, error)
	ListChildren(ctx context.Context, entryID, dirPath string) ([]*database.ArchiveNode, error)
	GetNodeByPath(ctx context.Context, entryID, path string) (*database.ArchiveNode, error)
	CountNodes(ctx context.Context, entryID string) (int, error)
}

// ContentReader extracts node content
type ContentReader interface {
	ReadNode(ctx context.Context, node *database.ArchiveNode) (*retrieval.Content, error)
}

// Server represents the API server
type Server struct {
	config      Config
	searcher    Searcher
	previewer   Previewer
	importer    importer.Importer
	catalog     CatalogReader
	reader      ContentReader
	broadcaster *progress.ProgressBroadcaster
	logger      *slog.Logger
}

// NewServer creates a new API server
func NewServer(
	config Config,
	searcher Searcher,
	previewer Previewer,
	importService importer.Importer,
	catalog CatalogReader,
	reader ContentReader,
	broadcaster *progress.ProgressBroadcaster,
) *Server {
	if config.DefaultUserID == "" {
		config.DefaultUserID = "local"
	}

	return &Server{
		config:      config,
		searcher:    searcher,
		previewer:   previewer,
		importer:    importService,
		catalog:     catalog,
		reader:      reader,
		broadcaster: broadcaster,
		logger:      slog.Default().With("component", "api"),
	}
}

// RegisterRoutes registers the API routes on a router group
func (s *Server) RegisterRoutes(r fiber.Router) {
	r.Use(auth.APIKeyMiddleware(s.config.APIKey))

	r.Get("/search", s.handleSearch)
	r.Get("/search/skills/:id", s.handleSearchSkill)
	r.Post("/preview", s.handlePreview)
	r.Post("/preview/file", s.handlePreviewFile)

	r.Post("/import", s.handleImport)
	r.Get("/imports/progress", s.handleGetProgress)
	r.Get("/imports/progress/stream", s.handleProgressStream)

	r.Get("/skills", s.handleListSkills)
	r.Get("/skills/:id", s.handleGetSkill)
	r.Get("/skills/:id/nodes", s.handleListNodes)
	r.Get("/skills/:id/content", s.handleGetContent)
}
