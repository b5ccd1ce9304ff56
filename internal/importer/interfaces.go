package importer

import (
	"context"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/progress"
)

// Downloader fetches archive bytes for a resolved download URL
type Downloader interface {
	Download(ctx context.Context, target string) ([]byte, error)
}

// Importer is the import surface consumed by the HTTP layers and the CLI
type Importer interface {
	// Import downloads the descriptor's archive and commits it
	Import(ctx context.Context, session *progress.Session, req ImportRequest) (*Result, error)
	// ImportMany imports several descriptors with bounded concurrency
	ImportMany(ctx context.Context, descriptors []adapter.ScrapeResult, opts BatchOptions) []*Result
	// NewSession creates a session wired to the importer's broadcaster
	NewSession(opts ...progress.SessionOption) *progress.Session
}
