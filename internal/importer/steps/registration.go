package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/slug"
	"github.com/javi11/skillvault/internal/slogutil"
)

// RegisterEntryStep inserts the catalog entry with no archive attached
type RegisterEntryStep struct {
	catalog         CatalogStore
	categories      CategoryStore
	defaultCategory string
	defaultLevel    string
	log             *slog.Logger
}

// NewRegisterEntryStep creates a new registration step
func NewRegisterEntryStep(catalog CatalogStore, categories CategoryStore, defaultCategory, defaultLevel string) *RegisterEntryStep {
	return &RegisterEntryStep{
		catalog:         catalog,
		categories:      categories,
		defaultCategory: defaultCategory,
		defaultLevel:    defaultLevel,
		log:             slog.Default().With("component", "import-register"),
	}
}

// Execute creates the entry row. Category normalization is best effort.
func (s *RegisterEntryStep) Execute(ctx context.Context, ictx *ImportContext) error {
	d := ictx.Descriptor

	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = s.defaultCategory
	}

	tags := ictx.Tags
	if tags == nil {
		tags = d.Tags
	}

	entry := &database.CatalogEntry{
		UserID:          ictx.UserID,
		Title:           d.Title,
		Description:     d.Description,
		Category:        category,
		Level:           s.defaultLevel,
		Tags:            tags,
		URL:             d.SourceURL,
		Status:          database.StatusOperational,
		Stars:           d.Stars,
		Forks:           d.Forks,
		RemoteUpdatedAt: d.UpdatedTime(),
	}

	matched := s.resolveCategory(ctx, category)
	if matched != nil {
		entry.CategoryID = &matched.ID
	}

	if err := s.catalog.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}
	ictx.Entry = entry

	if matched != nil {
		if err := s.categories.IncrementCount(ctx, matched.ID); err != nil {
			s.log.WarnContext(ctx, "Failed to bump category count", "category_id", matched.ID, "error", err)
		}
	}

	ictx.Session.Info(s.Name(), "Registered %q as entry %s", entry.Title, entry.ID)
	return nil
}

func (s *RegisterEntryStep) resolveCategory(ctx context.Context, category string) *database.Category {
	if s.categories == nil {
		return nil
	}

	key := slug.Make(category)
	if key == "" {
		return nil
	}

	matched, err := s.categories.GetBySlug(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "Category lookup failed", "slug", key, "error", err)
		return nil
	}
	return matched
}

// Name returns the step name
func (s *RegisterEntryStep) Name() string {
	return StepRegisterEntry
}

// EntryContext attaches the registered entry id to ctx for logging
func EntryContext(ctx context.Context, ictx *ImportContext) context.Context {
	if ictx.Entry == nil {
		return ctx
	}
	return slogutil.With(ctx, "entry_id", ictx.Entry.ID)
}
