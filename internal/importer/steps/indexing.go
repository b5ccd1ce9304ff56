package steps

import (
	"context"
	"fmt"

	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/indexer"
)

// IndexArchiveStep builds the node set of the archive
type IndexArchiveStep struct {
	excludes []string
}

// NewIndexArchiveStep creates a new indexing step. Nil excludes use the indexer defaults.
func NewIndexArchiveStep(excludes []string) *IndexArchiveStep {
	return &IndexArchiveStep{excludes: excludes}
}

// Execute indexes the archive. An empty result is logged, not failed.
func (s *IndexArchiveStep) Execute(ctx context.Context, ictx *ImportContext) error {
	result, err := indexer.IndexWithOptions(ictx.Archive, indexer.Options{
		Subfolder: ictx.Subfolder,
		Excludes:  s.excludes,
	})
	if err != nil {
		return err
	}
	ictx.Index = result

	if result.EntryCount == 0 {
		if ictx.Subfolder != "" {
			ictx.Session.Warn(s.Name(), "No files found under %q", ictx.Subfolder)
		} else {
			ictx.Session.Warn(s.Name(), "Archive contains no files")
		}
		return nil
	}

	ictx.Session.Info(s.Name(), "Indexed %d files into %d nodes (%d excluded, %d duplicates)",
		result.EntryCount, len(result.Nodes), result.Excluded, result.Duplicates)
	return nil
}

// Name returns the step name
func (s *IndexArchiveStep) Name() string {
	return StepIndexArchive
}

// InsertNodesStep persists the node set in fixed-size sequential chunks
type InsertNodesStep struct {
	catalog       CatalogStore
	batchSize     int
	progressEvery int
}

// NewInsertNodesStep creates a new bulk insert step
func NewInsertNodesStep(catalog CatalogStore, batchSize, progressEvery int) *InsertNodesStep {
	if batchSize <= 0 {
		batchSize = database.DefaultNodeBatchSize
	}
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &InsertNodesStep{
		catalog:       catalog,
		batchSize:     batchSize,
		progressEvery: progressEvery,
	}
}

// Execute inserts every node. A mid-way failure leaves the earlier chunks persisted.
func (s *InsertNodesStep) Execute(ctx context.Context, ictx *ImportContext) error {
	if err := requireEntry(ictx); err != nil {
		return err
	}
	if ictx.Index == nil {
		return fmt.Errorf("archive was not indexed")
	}

	rows := ToArchiveNodes(ictx.Entry.ID, ictx.StoragePath, ictx.Index.Nodes)
	if len(rows) == 0 {
		ictx.Session.Info(s.Name(), "No nodes to insert")
		return nil
	}

	// Reported between chunks; a chunk is written in one transaction
	nextReport := s.progressEvery
	inserted, err := s.catalog.BulkInsertNodes(ctx, rows, s.batchSize, func(chunk, totalChunks, inserted int) {
		ictx.Tracker.Update(inserted, len(rows))
		if inserted >= nextReport || chunk == totalChunks {
			ictx.Session.Info(s.Name(), "Inserted %d/%d nodes (chunk %d/%d)", inserted, len(rows), chunk, totalChunks)
			for nextReport <= inserted {
				nextReport += s.progressEvery
			}
		}
	})
	ictx.Inserted = inserted
	if err != nil {
		return err
	}

	ictx.Session.Success(s.Name(), "Indexed %d nodes", inserted)
	return nil
}

// Name returns the step name
func (s *InsertNodesStep) Name() string {
	return StepInsertNodes
}

// ToArchiveNodes converts indexed nodes into rows owned by entryID
func ToArchiveNodes(entryID, storagePath string, nodes []indexer.Node) []*database.ArchiveNode {
	var blobRef *string
	if storagePath != "" {
		blobRef = &storagePath
	}

	rows := make([]*database.ArchiveNode, 0, len(nodes))
	for _, n := range nodes {
		nodeType := database.NodeTypeFile
		if n.IsDir() {
			nodeType = database.NodeTypeDir
		}
		rows = append(rows, &database.ArchiveNode{
			EntryID:      entryID,
			NodeType:     nodeType,
			Path:         n.Path,
			DirPath:      n.ParentPath,
			Basename:     n.Name,
			Ext:          n.Ext,
			Depth:        n.Depth,
			SizeBytes:    n.Size,
			ContentType:  n.ContentType,
			StoragePath:  blobRef,
			InternalPath: n.InternalPath,
		})
	}
	return rows
}
