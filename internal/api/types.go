package api

import (
	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/database"
)

// APIMeta represents metadata for paginated responses
type APIMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ImportRequest is the body of POST /import
type ImportRequest struct {
	Hit    adapter.RawHit `json:"hit"`
	Tags   []string       `json:"tags"`
	UserID string         `json:"user_id"`
}

// PreviewFileRequest is the body of POST /preview/file
type PreviewFileRequest struct {
	DownloadURL string `json:"download_url"`
	Name        string `json:"name"`
}

// SkillDetail is an entry together with its node count
type SkillDetail struct {
	*database.CatalogEntry
	NodeCount int `json:"node_count"`
}
