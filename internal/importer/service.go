// Package importer commits search results into the catalog.
//
// A commit is a saga of named steps (see package steps): validate the archive,
// register the entry, upload the archive, link it, index it, insert the nodes.
// Steps run strictly in order. A failure stops the saga and is reported with
// the failing step name; earlier side effects are left in place.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/config"
	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/githuburl"
	"github.com/javi11/skillvault/internal/importer/steps"
	"github.com/javi11/skillvault/internal/progress"
	"github.com/sourcegraph/conc/pool"
)

// ServiceConfig holds configuration for the import service
type ServiceConfig struct {
	BatchSize       int
	ProgressEvery   int
	Excludes        []string
	DefaultCategory string
	DefaultLevel    string
	DefaultUserID   string
	MaxConcurrent   int // Imports in flight for ImportMany (default: 2)
}

// ServiceConfigFrom maps the import section of the application config
func ServiceConfigFrom(cfg *config.Config) ServiceConfig {
	return ServiceConfig{
		BatchSize:       cfg.GetBatchSize(),
		ProgressEvery:   cfg.GetProgressEvery(),
		Excludes:        cfg.Import.ExcludedPaths,
		DefaultCategory: cfg.Import.DefaultCategory,
		DefaultLevel:    cfg.Import.DefaultLevel,
		DefaultUserID:   cfg.GetDefaultUserID(),
		MaxConcurrent:   cfg.Import.MaxConcurrent,
	}
}

// CommitRequest is the input of one commit
type CommitRequest struct {
	Descriptor adapter.ScrapeResult
	Tags       []string
	UserID     string
	Archive    []byte
	// Subfolder narrows the indexed tree, usually derived from a /tree/<ref>/<path> source URL
	Subfolder string
}

// ImportRequest is the input of one download-and-commit
type ImportRequest struct {
	Descriptor adapter.ScrapeResult
	Tags       []string
	UserID     string
}

// BatchOptions apply to every import of an ImportMany call
type BatchOptions struct {
	Tags   []string
	UserID string
	// OnSession is called with each session before its import starts
	OnSession func(index int, session *progress.Session)
}

// Result describes the outcome of one import. Entry is set as soon as the
// entry is registered, so a failed import may still carry it.
type Result struct {
	SessionID  string                 `json:"session_id"`
	Entry      *database.CatalogEntry `json:"entry,omitempty"`
	EntryCount int                    `json:"entry_count"`
	NodeCount  int                    `json:"node_count"`
	Excluded   int                    `json:"excluded"`
	Duplicates int                    `json:"duplicates"`
	FailedStep string                 `json:"failed_step,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Log        []progress.Entry       `json:"log"`

	Err error `json:"-"`
}

// Service runs imports against a catalog store and a blob store
type Service struct {
	config      ServiceConfig
	pipeline    *steps.Pipeline
	downloader  Downloader
	broadcaster *progress.ProgressBroadcaster
	log         *slog.Logger
}

// NewService creates a new import service. downloader may be nil when only
// Commit is used; broadcaster may be nil when nobody streams progress.
func NewService(
	config ServiceConfig,
	catalog steps.CatalogStore,
	categories steps.CategoryStore,
	blobs steps.BlobStore,
	downloader Downloader,
	broadcaster *progress.ProgressBroadcaster,
) *Service {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	if config.DefaultUserID == "" {
		config.DefaultUserID = "local"
	}

	return &Service{
		config: config,
		pipeline: steps.BuildCommitPipeline(&steps.PipelineConfig{
			Catalog:         catalog,
			Categories:      categories,
			Blobs:           blobs,
			BatchSize:       config.BatchSize,
			ProgressEvery:   config.ProgressEvery,
			Excludes:        config.Excludes,
			DefaultCategory: config.DefaultCategory,
			DefaultLevel:    config.DefaultLevel,
		}),
		downloader:  downloader,
		broadcaster: broadcaster,
		log:         slog.Default().With("component", "importer-service"),
	}
}

// NewSession creates a session wired to the service's broadcaster
func (s *Service) NewSession(opts ...progress.SessionOption) *progress.Session {
	if s.broadcaster != nil {
		opts = append([]progress.SessionOption{progress.WithBroadcaster(s.broadcaster)}, opts...)
	}
	return progress.NewSession(opts...)
}

// Commit registers, stores and indexes an already downloaded archive.
// When session is nil a new one is created.
func (s *Service) Commit(ctx context.Context, session *progress.Session, req CommitRequest) (*Result, error) {
	if session == nil {
		session = s.NewSession()
	}
	ctx = session.Context(ctx)

	userID := req.UserID
	if userID == "" {
		userID = s.config.DefaultUserID
	}

	ictx := &steps.ImportContext{
		Descriptor: req.Descriptor,
		Tags:       req.Tags,
		UserID:     userID,
		Subfolder:  req.Subfolder,
		Archive:    req.Archive,
		Session:    session,
	}

	s.log.InfoContext(ctx, "Starting import",
		"title", req.Descriptor.Title,
		"url", req.Descriptor.SourceURL,
		"subfolder", req.Subfolder,
		"archive_bytes", len(req.Archive))

	err := s.pipeline.Execute(ctx, ictx)
	result := s.result(session, ictx, err)

	if s.broadcaster != nil {
		s.broadcaster.ClearProgress(session.ID())
	}

	if err != nil {
		s.log.ErrorContext(steps.EntryContext(ctx, ictx), "Import failed",
			"step", result.FailedStep,
			"error", err)
		return result, err
	}

	s.log.InfoContext(steps.EntryContext(ctx, ictx), "Import completed",
		"files", result.EntryCount,
		"nodes", result.NodeCount)
	return result, nil
}

// Import downloads the descriptor's archive through the relay and commits it.
// The subfolder is derived from the source URL.
func (s *Service) Import(ctx context.Context, session *progress.Session, req ImportRequest) (*Result, error) {
	if session == nil {
		session = s.NewSession()
	}

	archive, err := s.download(session.Context(ctx), session, req.Descriptor)
	if err != nil {
		err = sharedErrors.NewStepError(steps.StepDownloadArchive, err)
		return s.result(session, &steps.ImportContext{}, err), err
	}

	return s.Commit(ctx, session, CommitRequest{
		Descriptor: req.Descriptor,
		Tags:       req.Tags,
		UserID:     req.UserID,
		Archive:    archive,
		Subfolder:  githuburl.SubfolderHint(req.Descriptor.SourceURL),
	})
}

func (s *Service) download(ctx context.Context, session *progress.Session, d adapter.ScrapeResult) ([]byte, error) {
	target := strings.TrimSpace(d.DownloadURL)
	if target == "" {
		session.Error(steps.StepDownloadArchive, "No download URL for %q", d.Title)
		return nil, fmt.Errorf("%w: empty download url", sharedErrors.ErrInvalidURL)
	}
	if s.downloader == nil {
		return nil, fmt.Errorf("no downloader configured")
	}

	session.Info(steps.StepDownloadArchive, "Downloading %s", target)
	archive, err := s.downloader.Download(ctx, target)
	if err != nil {
		session.Error(steps.StepDownloadArchive, "Download failed: %v", err)
		return nil, err
	}
	if len(archive) == 0 {
		session.Error(steps.StepDownloadArchive, "Download returned no data")
		return nil, sharedErrors.ErrEmptyDownload
	}

	session.Info(steps.StepDownloadArchive, "Downloaded %d bytes", len(archive))
	return archive, nil
}

// ImportMany imports descriptors with at most MaxConcurrent in flight. Every
// import gets its own session; results are returned in input order.
func (s *Service) ImportMany(ctx context.Context, descriptors []adapter.ScrapeResult, opts BatchOptions) []*Result {
	results := make([]*Result, len(descriptors))

	p := pool.New().WithMaxGoroutines(s.config.MaxConcurrent)
	for i, d := range descriptors {
		session := s.NewSession()
		if opts.OnSession != nil {
			opts.OnSession(i, session)
		}

		p.Go(func() {
			result, err := s.Import(ctx, session, ImportRequest{
				Descriptor: d,
				Tags:       opts.Tags,
				UserID:     opts.UserID,
			})
			if err != nil {
				s.log.WarnContext(session.Context(ctx), "Batch import item failed", "index", i, "title", d.Title, "error", err)
			}
			results[i] = result
		})
	}
	p.Wait()

	return results
}

func (s *Service) result(session *progress.Session, ictx *steps.ImportContext, err error) *Result {
	result := &Result{
		SessionID: session.ID(),
		Entry:     ictx.Entry,
		NodeCount: ictx.Inserted,
		Log:       session.Entries(),
		Err:       err,
	}
	if ictx.Index != nil {
		result.EntryCount = ictx.Index.EntryCount
		result.Excluded = ictx.Index.Excluded
		result.Duplicates = ictx.Index.Duplicates
	}
	if err != nil {
		result.FailedStep = sharedErrors.StepOf(err)
		result.Error = err.Error()
	}
	return result
}
