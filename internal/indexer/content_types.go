package indexer

import (
	"regexp"
	"strings"
)

// DefaultContentType is used for every extension missing from the table.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".js":   "application/javascript",
	".ts":   "application/typescript",
	".tsx":  "application/typescript",
	".json": "application/json",
	".md":   "text/markdown",
	".py":   "text/x-python",
	".txt":  "text/plain",
	".yml":  "text/yaml",
	".yaml": "text/yaml",
}

// textExtensions are shown inline even when the content type table maps them to octet-stream.
var textExtensions = map[string]struct{}{
	".md": {}, ".txt": {}, ".json": {}, ".yml": {}, ".yaml": {}, ".toml": {},
	".xml": {}, ".csv": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {},
	".py": {}, ".go": {}, ".rs": {}, ".java": {}, ".rb": {}, ".php": {}, ".sh": {},
}

var extPattern = regexp.MustCompile(`\.[a-z0-9]+$`)

// Extension returns the lowercased extension of name including the dot, or "" when it has none.
func Extension(name string) string {
	return extPattern.FindString(strings.ToLower(name))
}

// ContentTypeFor maps an extension (as returned by Extension) to a content type.
func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return DefaultContentType
}

// IsText reports whether content with this type or extension should be
// handled as text rather than raw bytes.
func IsText(contentType, ext string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "javascript") ||
		strings.Contains(ct, "typescript") {
		return true
	}
	_, ok := textExtensions[strings.ToLower(ext)]
	return ok
}
