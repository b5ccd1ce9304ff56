package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/indexer"
	"github.com/javi11/skillvault/internal/progress"
)

// Saga step names, reported by errors.StepOf on failure
const (
	StepDownloadArchive = "download-archive"
	StepValidateArchive = "validate-archive"
	StepRegisterEntry   = "register-entry"
	StepUploadArchive   = "upload-archive"
	StepLinkArchive     = "link-archive"
	StepIndexArchive    = "index-archive"
	StepInsertNodes     = "insert-nodes"
)

// Step represents a single step of the import saga
type Step interface {
	Execute(ctx context.Context, ictx *ImportContext) error
	Name() string
}

// ImportContext holds the state passed between saga steps
type ImportContext struct {
	// Input data
	Descriptor adapter.ScrapeResult
	Tags       []string
	UserID     string
	Subfolder  string
	Archive    []byte

	Session *progress.Session
	// Tracker covers the percentage slice of the running step
	Tracker *progress.Tracker

	// Results from previous steps
	Entry       *database.CatalogEntry
	StoragePath string
	Index       *indexer.Result
	Inserted    int
}

// Pipeline runs saga steps strictly in order, stopping at the first failure
type Pipeline struct {
	name  string
	steps []Step
	log   *slog.Logger
}

// NewPipeline creates a new import pipeline
func NewPipeline(name string, steps ...Step) *Pipeline {
	return &Pipeline{
		name:  name,
		steps: steps,
		log:   slog.Default().With("component", "import-pipeline"),
	}
}

// Execute runs all steps. A failure is returned as *errors.StepError naming the step.
func (p *Pipeline) Execute(ctx context.Context, ictx *ImportContext) error {
	if ictx.Session == nil {
		ictx.Session = progress.NewSession()
	}

	total := len(p.steps)
	for i, step := range p.steps {
		ictx.Tracker = ictx.Session.Tracker(i*100/total, (i+1)*100/total)

		start := time.Now()
		p.log.DebugContext(ctx, "Running import step", "pipeline", p.name, "step", step.Name())

		if err := step.Execute(ctx, ictx); err != nil {
			ictx.Session.Error(step.Name(), "%s failed: %v", step.Name(), err)
			p.log.ErrorContext(ctx, "Import step failed",
				"pipeline", p.name,
				"step", step.Name(),
				"error", err)
			return sharedErrors.NewStepError(step.Name(), err)
		}

		ictx.Tracker.Done()
		p.log.DebugContext(ctx, "Import step completed",
			"pipeline", p.name,
			"step", step.Name(),
			"duration", time.Since(start))
	}

	return nil
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Steps returns the step names in execution order
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// CatalogStore is the catalog write contract the saga depends on
type CatalogStore interface {
	CreateEntry(ctx context.Context, entry *database.CatalogEntry) error
	AttachArchive(ctx context.Context, entryID, storagePath string) error
	BulkInsertNodes(ctx context.Context, nodes []*database.ArchiveNode, batchSize int, onChunk database.ChunkFunc) (int, error)
}

// CategoryStore resolves free-text categories to normalized ones
type CategoryStore interface {
	GetBySlug(ctx context.Context, slug string) (*database.Category, error)
	IncrementCount(ctx context.Context, id string) error
}

// BlobStore receives the raw archive
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// PipelineConfig holds the dependencies needed to build the commit pipeline
type PipelineConfig struct {
	Catalog         CatalogStore
	Categories      CategoryStore
	Blobs           BlobStore
	BatchSize       int
	ProgressEvery   int
	Excludes        []string
	DefaultCategory string
	DefaultLevel    string
}

// BuildCommitPipeline creates the validate, register, upload, link, index, insert saga
func BuildCommitPipeline(cfg *PipelineConfig) *Pipeline {
	return NewPipeline("Commit",
		NewValidateArchiveStep(),
		NewRegisterEntryStep(cfg.Catalog, cfg.Categories, cfg.DefaultCategory, cfg.DefaultLevel),
		NewUploadArchiveStep(cfg.Blobs),
		NewLinkArchiveStep(cfg.Catalog),
		NewIndexArchiveStep(cfg.Excludes),
		NewInsertNodesStep(cfg.Catalog, cfg.BatchSize, cfg.ProgressEvery),
	)
}

func requireEntry(ictx *ImportContext) error {
	if ictx.Entry == nil || ictx.Entry.ID == "" {
		return fmt.Errorf("no catalog entry registered")
	}
	return nil
}
