package steps

import (
	"context"

	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/indexer"
)

// ValidateArchiveStep rejects empty and unreadable downloads before anything is written
type ValidateArchiveStep struct{}

// NewValidateArchiveStep creates a new archive validation step
func NewValidateArchiveStep() *ValidateArchiveStep {
	return &ValidateArchiveStep{}
}

// Execute checks that the archive bytes open as a zip
func (s *ValidateArchiveStep) Execute(ctx context.Context, ictx *ImportContext) error {
	if len(ictx.Archive) == 0 {
		return sharedErrors.ErrEmptyDownload
	}

	r, err := indexer.Open(ictx.Archive)
	if err != nil {
		return err
	}

	ictx.Session.Info(s.Name(), "Archive is valid (%d bytes, %d entries)", len(ictx.Archive), len(r.File))
	return nil
}

// Name returns the step name
func (s *ValidateArchiveStep) Name() string {
	return StepValidateArchive
}
