package steps

import (
	"context"
	"fmt"

	"github.com/javi11/skillvault/internal/blobstore"
)

// UploadArchiveStep stores the raw archive as one blob under <user>/<entry>/archive
type UploadArchiveStep struct {
	blobs BlobStore
}

// NewUploadArchiveStep creates a new upload step
func NewUploadArchiveStep(blobs BlobStore) *UploadArchiveStep {
	return &UploadArchiveStep{blobs: blobs}
}

// Execute uploads the archive. On failure the entry stays registered without an archive.
func (s *UploadArchiveStep) Execute(ctx context.Context, ictx *ImportContext) error {
	if err := requireEntry(ictx); err != nil {
		return err
	}

	key := blobstore.ArchiveKey(ictx.UserID, ictx.Entry.ID)
	if err := s.blobs.Put(ctx, key, ictx.Archive); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}
	ictx.StoragePath = key

	ictx.Session.Info(s.Name(), "Uploaded archive to %s", key)
	return nil
}

// Name returns the step name
func (s *UploadArchiveStep) Name() string {
	return StepUploadArchive
}

// LinkArchiveStep records the blob reference on the entry, exactly once
type LinkArchiveStep struct {
	catalog CatalogStore
}

// NewLinkArchiveStep creates a new link step
func NewLinkArchiveStep(catalog CatalogStore) *LinkArchiveStep {
	return &LinkArchiveStep{catalog: catalog}
}

// Execute attaches the uploaded path. On failure the blob stays uploaded but unlinked.
func (s *LinkArchiveStep) Execute(ctx context.Context, ictx *ImportContext) error {
	if err := requireEntry(ictx); err != nil {
		return err
	}
	if ictx.StoragePath == "" {
		return fmt.Errorf("no archive uploaded")
	}

	if err := s.catalog.AttachArchive(ctx, ictx.Entry.ID, ictx.StoragePath); err != nil {
		return fmt.Errorf("failed to link archive: %w", err)
	}
	path := ictx.StoragePath
	ictx.Entry.StoragePath = &path

	ictx.Session.Info(s.Name(), "Linked archive to entry")
	return nil
}

// Name returns the step name
func (s *LinkArchiveStep) Name() string {
	return StepLinkArchive
}
