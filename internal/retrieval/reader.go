// Package retrieval reads single archive members on demand.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/indexer"
)

// BlobGetter is the read side of the blob store
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Content is one extracted archive member
type Content struct {
	Name        string
	Data        []byte
	ContentType string
	IsText      bool
}

// Text returns the content as a string
func (c *Content) Text() string {
	return string(c.Data)
}

// Reader extracts node content from cached archives
type Reader struct {
	blobs BlobGetter
	cache *ArchiveCache
	log   *slog.Logger
}

// NewReader creates a reader backed by blobs and cache
func NewReader(blobs BlobGetter, cache *ArchiveCache) *Reader {
	return &Reader{
		blobs: blobs,
		cache: cache,
		log:   slog.Default().With("component", "retrieval"),
	}
}

// ReadNode extracts the member a node points at. Nodes with no internal
// archive path or no blob reference fail with errors.ErrContentNotLocatable.
func (r *Reader) ReadNode(ctx context.Context, node *database.ArchiveNode) (*Content, error) {
	if node == nil || node.IsDir() || node.InternalPath == nil || *node.InternalPath == "" {
		return nil, sharedErrors.ErrContentNotLocatable
	}
	if node.StoragePath == nil || *node.StoragePath == "" {
		return nil, sharedErrors.ErrContentNotLocatable
	}

	content, err := r.ReadMember(ctx, *node.StoragePath, *node.InternalPath)
	if err != nil {
		return nil, err
	}

	content.Name = node.Basename
	if node.ContentType != nil {
		content.ContentType = *node.ContentType
	}
	ext := ""
	if node.Ext != nil {
		ext = *node.Ext
	}
	content.IsText = indexer.IsText(content.ContentType, ext)
	return content, nil
}

// ReadMember extracts internalPath from the archive stored at storagePath
func (r *Reader) ReadMember(ctx context.Context, storagePath, internalPath string) (*Content, error) {
	a, err := r.cache.get(ctx, storagePath, r.blobs.Get)
	if err != nil {
		return nil, err
	}

	f, ok := a.files[internalPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not in archive %s", sharedErrors.ErrContentNotLocatable, internalPath, storagePath)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", internalPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", internalPath, err)
	}

	r.log.DebugContext(ctx, "Read archive member",
		"storage_path", storagePath,
		"internal_path", internalPath,
		"bytes", len(data))

	ext := indexer.Extension(f.Name)
	contentType := indexer.ContentTypeFor(ext)
	return &Content{
		Name:        f.FileInfo().Name(),
		Data:        data,
		ContentType: contentType,
		IsText:      indexer.IsText(contentType, ext),
	}, nil
}
