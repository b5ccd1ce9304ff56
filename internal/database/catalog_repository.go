package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultNodeBatchSize is the number of nodes written per bulk insert chunk
const DefaultNodeBatchSize = 500

// ErrArchiveAlreadyLinked is returned when an entry already carries a blob reference
var ErrArchiveAlreadyLinked = errors.New("archive already linked to entry")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CatalogRepository handles catalog entries and their archive nodes
type CatalogRepository struct {
	db querier
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db querier) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ChunkFunc is invoked after each bulk insert chunk commits
type ChunkFunc func(chunk, totalChunks, inserted int)

// ChunkError reports the bulk insert chunk that failed
type ChunkError struct {
	Chunk       int // 1-based
	TotalChunks int
	Inserted    int // Nodes committed before the failing chunk
	Err         error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("failed to insert node chunk %d/%d (%d nodes committed): %v", e.Chunk, e.TotalChunks, e.Inserted, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

const entryColumns = `id, user_id, title, description, category, category_id, level, tags, url,
	storage_path, status, stars, forks, remote_updated_at, created_at`

// CreateEntry inserts a new catalog entry with no archive reference
func (r *CatalogRepository) CreateEntry(ctx context.Context, entry *CatalogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusOperational
	}
	entry.CreatedAt = time.Now().UTC()

	tags, err := encodeStrings(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO catalog_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Title, entry.Description, entry.Category, entry.CategoryID,
		entry.Level, tags, entry.URL, string(entry.Status), entry.Stars, entry.Forks,
		entry.RemoteUpdatedAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}

	entry.StoragePath = nil
	return nil
}

// AttachArchive links the uploaded blob to the entry. The reference is set at most once.
func (r *CatalogRepository) AttachArchive(ctx context.Context, entryID, storagePath string) error {
	if storagePath == "" {
		return fmt.Errorf("storage path is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE catalog_entries SET storage_path = $1 WHERE id = $2 AND storage_path IS NULL`,
		storagePath, entryID)
	if err != nil {
		return fmt.Errorf("failed to attach archive: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	entry, err := r.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("catalog entry %s not found", entryID)
	}
	return ErrArchiveAlreadyLinked
}

// GetEntry retrieves an entry by id, returning nil when it does not exist
func (r *CatalogRepository) GetEntry(ctx context.Context, id string) (*CatalogEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM catalog_entries WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns the entries owned by userID, newest first.
// An empty userID lists every entry.
func (r *CatalogRepository) ListEntries(ctx context.Context, userID string) ([]*CatalogEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM catalog_entries`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`

	return r.queryEntries(ctx, query, args...)
}

// ListEntriesByIDs returns the entries of userID whose ids are in ids, ordered by title
func (r *CatalogRepository) ListEntriesByIDs(ctx context.Context, userID string, ids []string) ([]*CatalogEntry, error) {
	if len(ids) == 0 {
		return []*CatalogEntry{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `SELECT ` + entryColumns + ` FROM catalog_entries
		WHERE user_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY title, id`

	return r.queryEntries(ctx, query, args...)
}

func (r *CatalogRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	entries := []*CatalogEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*CatalogEntry, error) {
	var (
		entry  CatalogEntry
		tags   string
		status string
	)
	err := s.Scan(
		&entry.ID, &entry.UserID, &entry.Title, &entry.Description, &entry.Category, &entry.CategoryID,
		&entry.Level, &tags, &entry.URL, &entry.StoragePath, &status, &entry.Stars, &entry.Forks,
		&entry.RemoteUpdatedAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Status = EntryStatus(status)
	entry.Tags = decodeStrings(tags)
	return &entry, nil
}

// BulkInsertNodes writes nodes in sequential chunks of batchSize, each in its own
// transaction. The first failing chunk stops the insert: earlier chunks stay
// committed and later chunks are never attempted. It returns the number of
// nodes committed.
func (r *CatalogRepository) BulkInsertNodes(ctx context.Context, nodes []*ArchiveNode, batchSize int, onChunk ChunkFunc) (int, error) {
	if len(nodes) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultNodeBatchSize
	}

	totalChunks := (len(nodes) + batchSize - 1) / batchSize
	inserted := 0

	for chunk := 0; chunk < totalChunks; chunk++ {
		start := chunk * batchSize
		end := min(start+batchSize, len(nodes))

		err := r.withTransaction(ctx, func(txRepo *CatalogRepository) error {
			return txRepo.insertNodes(ctx, nodes[start:end])
		})
		if err != nil {
			return inserted, &ChunkError{Chunk: chunk + 1, TotalChunks: totalChunks, Inserted: inserted, Err: err}
		}

		inserted += end - start
		if onChunk != nil {
			onChunk(chunk+1, totalChunks, inserted)
		}
	}

	return inserted, nil
}

func (r *CatalogRepository) insertNodes(ctx context.Context, nodes []*ArchiveNode) error {
	query := `
		INSERT INTO archive_nodes (id, entry_id, node_type, path, dir_path, basename, ext, depth,
			size_bytes, content_type, storage_path, zip_internal_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now().UTC()
	for _, node := range nodes {
		if node.ID == "" {
			node.ID = uuid.NewString()
		}
		node.CreatedAt = now

		_, err := r.db.ExecContext(ctx, query,
			node.ID, node.EntryID, string(node.NodeType), node.Path, node.DirPath, node.Basename, node.Ext,
			node.Depth, node.SizeBytes, node.ContentType, node.StoragePath, node.InternalPath, node.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.Path, err)
		}
	}
	return nil
}

const nodeColumns = `id, entry_id, node_type, path, dir_path, basename, ext, depth,
	size_bytes, content_type, storage_path, zip_internal_path, created_at`

// ListNodes returns every node of an entry ordered by path
func (r *CatalogRepository) ListNodes(ctx context.Context, entryID string) ([]*ArchiveNode, error) {
	return r.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM archive_nodes WHERE entry_id = $1 ORDER BY path`, entryID)
}

// ListChildren returns the direct children of dirPath ("" for the tree root)
func (r *CatalogRepository) ListChildren(ctx context.Context, entryID, dirPath string) ([]*ArchiveNode, error) {
	return r.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM archive_nodes WHERE entry_id = $1 AND dir_path = $2 ORDER BY path`,
		entryID, dirPath)
}

// GetNodeByPath retrieves a node by its canonical path, returning nil when absent
func (r *CatalogRepository) GetNodeByPath(ctx context.Context, entryID, path string) (*ArchiveNode, error) {
	nodes, err := r.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM archive_nodes WHERE entry_id = $1 AND path = $2`, entryID, path)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// CountNodes returns the number of nodes stored for an entry
func (r *CatalogRepository) CountNodes(ctx context.Context, entryID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive_nodes WHERE entry_id = $1`, entryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

func (r *CatalogRepository) queryNodes(ctx context.Context, query string, args ...any) ([]*ArchiveNode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*ArchiveNode{}
	for rows.Next() {
		var (
			node     ArchiveNode
			nodeType string
		)
		err := rows.Scan(
			&node.ID, &node.EntryID, &nodeType, &node.Path, &node.DirPath, &node.Basename, &node.Ext,
			&node.Depth, &node.SizeBytes, &node.ContentType, &node.StoragePath, &node.InternalPath, &node.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node.NodeType = NodeType(nodeType)
		nodes = append(nodes, &node)
	}
	return nodes, rows.Err()
}

// withTransaction executes fn within a database transaction
func (r *CatalogRepository) withTransaction(ctx context.Context, fn func(*CatalogRepository) error) error {
	sqlDB, ok := r.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("catalog repository not connected to sql.DB")
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(&CatalogRepository{db: tx})
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w): %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func decodeStrings(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
