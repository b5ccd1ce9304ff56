package database

import (
	"slices"
	"time"
)

// EntryStatus is the lifecycle state of a catalog entry
type EntryStatus string

const (
	StatusAnalyzing   EntryStatus = "Analyzing"
	StatusOperational EntryStatus = "Operational"
	StatusPaused      EntryStatus = "Paused"
	StatusArchived    EntryStatus = "Archived"
)

// NodeType distinguishes file and directory nodes
type NodeType string

const (
	NodeTypeFile NodeType = "file"
	NodeTypeDir  NodeType = "dir"
)

// CatalogEntry represents one imported skill package
type CatalogEntry struct {
	ID              string      `db:"id" json:"id"`
	UserID          string      `db:"user_id" json:"user_id"`
	Title           string      `db:"title" json:"title"`
	Description     string      `db:"description" json:"description"`
	Category        string      `db:"category" json:"category"`       // Free-text legacy category
	CategoryID      *string     `db:"category_id" json:"category_id"` // Normalized category reference
	Level           string      `db:"level" json:"level"`
	Tags            []string    `db:"tags" json:"tags"` // Stored as a JSON array
	URL             string      `db:"url" json:"url"`
	StoragePath     *string     `db:"storage_path" json:"storage_path"` // Set at most once
	Status          EntryStatus `db:"status" json:"status"`
	Stars           int         `db:"stars" json:"stars"`
	Forks           int         `db:"forks" json:"forks"`
	RemoteUpdatedAt *time.Time  `db:"remote_updated_at" json:"remote_updated_at"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

// HasArchive reports whether the archive blob has been linked
func (e *CatalogEntry) HasArchive() bool {
	return e.StoragePath != nil && *e.StoragePath != ""
}

// ArchiveNode represents one file or directory inside an entry's archive tree
type ArchiveNode struct {
	ID           string    `db:"id" json:"id"`
	EntryID      string    `db:"entry_id" json:"entry_id"`
	NodeType     NodeType  `db:"node_type" json:"node_type"`
	Path         string    `db:"path" json:"path"`         // Directories end with "/"
	DirPath      string    `db:"dir_path" json:"dir_path"` // Empty at tree root
	Basename     string    `db:"basename" json:"basename"`
	Ext          *string   `db:"ext" json:"ext"`
	Depth        int       `db:"depth" json:"depth"`
	SizeBytes    *int64    `db:"size_bytes" json:"size_bytes"`
	ContentType  *string   `db:"content_type" json:"content_type"`
	StoragePath  *string   `db:"storage_path" json:"storage_path"`           // Shared archive blob reference
	InternalPath *string   `db:"zip_internal_path" json:"zip_internal_path"` // Literal path inside the archive
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// IsDir reports whether the node is a directory
func (n *ArchiveNode) IsDir() bool {
	return n.NodeType == NodeTypeDir
}

// Category represents a normalized skill category
type Category struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	Description  string    `db:"description" json:"description"`
	Icon         string    `db:"icon" json:"icon"`
	Color        string    `db:"color" json:"color"`
	IsPredefined bool      `db:"is_predefined" json:"is_predefined"`
	UserID       *string   `db:"user_id" json:"user_id"`
	SkillCount   int       `db:"skill_count" json:"skill_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ToolConnection is an access token scoped to a set of catalog entries
type ToolConnection struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Name            string     `db:"name" json:"name"`
	TokenHash       string     `db:"token_hash" json:"-"`
	AllowedSkillIDs []string   `db:"allowed_skill_ids" json:"allowed_skill_ids"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt      *time.Time `db:"last_used_at" json:"last_used_at"`
	RevokedAt       *time.Time `db:"revoked_at" json:"revoked_at"`
}

// Allows reports whether the connection may read the given entry
func (c *ToolConnection) Allows(entryID string) bool {
	return slices.Contains(c.AllowedSkillIDs, entryID)
}

// IsRevoked reports whether the connection has been revoked
func (c *ToolConnection) IsRevoked() bool {
	return c.RevokedAt != nil
}
