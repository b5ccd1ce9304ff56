// Package adapter normalizes loosely shaped search hits into ScrapeResult.
package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/javi11/skillvault/internal/githuburl"
)

// RawHit is one search hit exactly as decoded from JSON. It never leaves the
// adapter boundary: everything downstream works on ScrapeResult.
type RawHit map[string]any

// ScrapeResult is the canonical descriptor of a search hit.
type ScrapeResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SourceURL   string   `json:"source_url"`
	DownloadURL string   `json:"download_url"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags"`
	Latency     int      `json:"latency"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	UpdatedAt   string   `json:"updated_at"`
	Content     string   `json:"content,omitempty"`
}

// UpdatedTime parses UpdatedAt, returning nil when it is not RFC 3339.
func (r ScrapeResult) UpdatedTime() *time.Time {
	t, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return nil
	}
	return &t
}

const unknownTitle = "Unknown Skill"

var pluginFilenamePattern = regexp.MustCompile(`(?i)plugins-([a-z0-9-]+)-skills`)

// Adapt normalizes raw using the current time for a missing update timestamp.
func Adapt(raw RawHit) ScrapeResult {
	return AdaptAt(raw, time.Now())
}

// AdaptAt normalizes raw. It never fails: missing or mistyped fields fall
// back to defaults.
func AdaptAt(raw RawHit, now time.Time) ScrapeResult {
	skill := asMap(raw["skill"])
	metadata := asMap(raw["metadata"])
	if metadata == nil {
		metadata = asMap(skill["metadata"])
	}

	filename := asString(raw["filename"])

	title := firstNonEmpty(asString(skill["name"]), filename, asString(raw["title"]), unknownTitle)

	fileLabel := filename
	if fileLabel == "" {
		fileLabel = "N/A"
	}
	description := firstNonEmpty(
		asString(skill["description"]),
		asString(raw["description"]),
		asString(raw["summary"]),
		"File: "+fileLabel,
	)

	sourceURL := firstNonEmpty(
		asString(raw["download_url"]),
		asString(skill["githubUrl"]),
		asString(skill["skillUrl"]),
		asString(raw["url"]),
	)

	downloadURL := sourceURL
	if githuburl.IsGitHub(sourceURL) {
		downloadURL = githuburl.ArchiveURL(sourceURL)
	}

	category := firstNonEmpty(
		strings.TrimSpace(asString(skill["category"])),
		strings.TrimSpace(asString(raw["category"])),
		strings.TrimSpace(firstString(raw["categories"])),
		strings.TrimSpace(firstString(skill["categories"])),
		githuburl.PluginCategory(asString(skill["githubUrl"])),
		githuburl.PluginCategory(asString(raw["url"])),
		categoryFromFilename(filename),
	)

	tagSource := asStrings(raw["tags"])
	if tagSource == nil {
		tagSource = asStrings(raw["categories"])
	}
	tags := make([]string, 0, len(tagSource))
	for _, tag := range tagSource {
		if category != "" && tag == category {
			continue
		}
		tags = append(tags, tag)
	}

	updatedAt := firstNonEmpty(
		asString(metadata["updated_at"]),
		asString(skill["updated_at"]),
		now.UTC().Format(time.RFC3339),
	)

	return ScrapeResult{
		Title:       title,
		Description: description,
		SourceURL:   sourceURL,
		DownloadURL: downloadURL,
		Category:    category,
		Tags:        tags,
		Latency:     latency(raw["score"]),
		Stars:       firstPositive(asInt(metadata["stars"]), asInt(skill["stars"])),
		Forks:       firstPositive(asInt(metadata["forks"]), asInt(skill["forks"])),
		UpdatedAt:   updatedAt,
		Content:     firstNonEmpty(asString(skill["content"]), asString(skill["readme"]), asString(raw["content"])),
	}
}

func categoryFromFilename(filename string) string {
	matches := pluginFilenamePattern.FindAllStringSubmatch(filename, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}

// latency is a display heuristic derived from the relevance score, not a measurement.
func latency(score any) int {
	f, ok := asFloat(score)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f * 100))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// asStrings returns the string elements of a JSON array, or nil when v is not an array.
func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func firstString(v any) string {
	list, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok && len(strs) > 0 {
			return strs[0]
		}
		return ""
	}
	if len(list) == 0 {
		return ""
	}
	return asString(list[0])
}

// String is handy for CLI listings.
func (r ScrapeResult) String() string {
	return fmt.Sprintf("%s (%d stars) %s", r.Title, r.Stars, r.SourceURL)
}
