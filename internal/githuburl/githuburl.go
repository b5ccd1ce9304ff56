// Package githuburl parses GitHub web URLs into repository coordinates and
// builds the archive, raw-content and contents-API URLs derived from them.
package githuburl

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBranch is the branch assumed when a URL does not name one.
// Archive URLs are always built against it; only content discovery
// also probes "master".
const DefaultBranch = "main"

const (
	KindRoot = ""
	KindTree = "tree"
	KindBlob = "blob"
)

// Location is a GitHub repository plus an optional ref and path inside it.
type Location struct {
	Owner string
	Repo  string
	Kind  string
	Ref   string
	Path  string
}

// IsGitHub reports whether raw points at github.com.
func IsGitHub(raw string) bool {
	return strings.Contains(raw, "github.com/")
}

// Parse splits a github.com URL into owner, repo and, for /tree/ and /blob/
// URLs, the ref and the path after it. The ref defaults to DefaultBranch.
func Parse(raw string) (Location, bool) {
	if !IsGitHub(raw) {
		return Location{}, false
	}

	parts := pathParts(raw)
	if len(parts) < 2 {
		return Location{}, false
	}

	loc := Location{
		Owner: parts[0],
		Repo:  parts[1],
		Ref:   DefaultBranch,
	}

	for i := 2; i < len(parts); i++ {
		if parts[i] != KindTree && parts[i] != KindBlob {
			continue
		}
		loc.Kind = parts[i]
		if i+1 < len(parts) {
			loc.Ref = parts[i+1]
		}
		if i+2 < len(parts) {
			loc.Path = strings.Join(parts[i+2:], "/")
		}
		break
	}

	return loc, true
}

// pathParts returns the non-empty path segments following "github.com/".
func pathParts(raw string) []string {
	rest := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		rest = u.Path
	} else if idx := strings.Index(raw, "github.com/"); idx >= 0 {
		rest = raw[idx+len("github.com/"):]
	}

	if idx := strings.IndexAny(rest, "?#"); idx >= 0 {
		rest = rest[:idx]
	}

	var parts []string
	for _, p := range strings.Split(rest, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// ArchiveURL rewrites a GitHub URL to the zip of DefaultBranch. Anything else is returned unchanged.
func ArchiveURL(sourceURL string) string {
	loc, ok := Parse(strings.TrimSuffix(sourceURL, "/"))
	if !ok {
		return sourceURL
	}
	return fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", loc.Owner, loc.Repo, DefaultBranch)
}

// RawURL builds a raw.githubusercontent.com URL. An empty path yields the ref root.
func (l Location) RawURL(ref, path string) string {
	base := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", l.Owner, l.Repo, ref)
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimPrefix(path, "/")
}

// ContentsAPIURL builds the GitHub contents API URL for the location's path and ref.
func (l Location) ContentsAPIURL() string {
	return fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s?ref=%s",
		l.Owner, l.Repo, l.Path, url.QueryEscape(l.Ref))
}

// SubfolderHint returns the in-repository path of a /tree/<ref>/<path> URL,
// or "" when the URL does not point into a subfolder.
func SubfolderHint(sourceURL string) string {
	_, after, found := strings.Cut(sourceURL, "/tree/")
	if !found {
		return ""
	}
	if idx := strings.IndexAny(after, "?#"); idx >= 0 {
		after = after[:idx]
	}

	segments := strings.Split(strings.Trim(after, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return strings.Join(segments[1:], "/")
}

// PluginCategory extracts <cat> from /tree/<ref>/.../plugins/<cat>/... URLs.
func PluginCategory(raw string) string {
	if !IsGitHub(raw) {
		return ""
	}

	parts := pathParts(raw)
	for i, p := range parts {
		if p != KindTree {
			continue
		}
		if i+2 > len(parts) {
			return ""
		}
		after := parts[i+2:]
		for j, seg := range after {
			if seg == "plugins" && j+1 < len(after) {
				return strings.TrimSpace(after[j+1])
			}
		}
		return ""
	}
	return ""
}
