// Package discovery finds something previewable for a search result before it is imported.
//
// Strategies run in order: inline content, documentation files from the
// repository, then a directory listing. Every fetch failure is logged and
// swallowed; Discover always returns an Outcome.
package discovery

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/githuburl"
	"github.com/javi11/skillvault/internal/relay"
)

const (
	minInlineContent = 50
	minProbeContent  = 20
	notFoundMarker   = "404: Not Found"
	fallbackBranch   = "master"
)

// Kind says which strategy produced an Outcome
type Kind string

const (
	KindNone    Kind = "none"
	KindText    Kind = "text"
	KindListing Kind = "listing"
)

// Fetcher is the subset of the relay client that discovery needs
type Fetcher interface {
	Preview(ctx context.Context, target string) (string, error)
	DirectoryListing(ctx context.Context, apiURL string) ([]relay.ListingEntry, error)
}

// Outcome is what the preview pane shows
type Outcome struct {
	Kind        Kind                 `json:"kind"`
	Text        string               `json:"text,omitempty"`
	Source      string               `json:"source,omitempty"` // "content" or the fetched URL
	Listing     []relay.ListingEntry `json:"listing,omitempty"`
	FrontMatter *FrontMatter         `json:"front_matter,omitempty"`
}

// Service runs the discovery strategies
type Service struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a discovery service
func New(fetcher Fetcher) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  slog.Default().With("component", "discovery"),
	}
}

// Discover returns the first previewable representation of result
func (s *Service) Discover(ctx context.Context, result adapter.ScrapeResult) Outcome {
	if len(result.Content) > minInlineContent {
		return textOutcome(result.Content, "content")
	}

	loc, ok := githuburl.Parse(result.SourceURL)
	if !ok {
		return Outcome{Kind: KindNone}
	}

	if loc.Kind == githuburl.KindBlob {
		target := loc.RawURL(loc.Ref, loc.Path)
		text, err := s.fetcher.Preview(ctx, target)
		if err != nil || text == "" {
			s.logger.DebugContext(ctx, "Blob preview unavailable", "url", target, "error", err)
			return Outcome{Kind: KindNone}
		}
		return textOutcome(text, target)
	}

	for _, target := range Candidates(loc) {
		text, err := s.fetcher.Preview(ctx, target)
		if err != nil {
			s.logger.DebugContext(ctx, "Preview candidate failed", "url", target, "error", err)
			continue
		}
		if len(text) > minProbeContent && !strings.Contains(text, notFoundMarker) {
			return textOutcome(text, target)
		}
	}

	apiURL := loc.ContentsAPIURL()
	entries, err := s.fetcher.DirectoryListing(ctx, apiURL)
	if err != nil {
		s.logger.DebugContext(ctx, "Directory listing failed", "url", apiURL, "error", err)
		return Outcome{Kind: KindNone}
	}
	if len(entries) == 0 {
		return Outcome{Kind: KindNone}
	}
	return Outcome{Kind: KindListing, Source: apiURL, Listing: entries}
}

// PreviewFile fetches one file picked from a directory listing.
// Directories and entries without a download URL yield KindNone.
func (s *Service) PreviewFile(ctx context.Context, entry relay.ListingEntry) Outcome {
	if entry.Type != "file" || entry.DownloadURL == "" {
		return Outcome{Kind: KindNone}
	}

	text, err := s.fetcher.Preview(ctx, entry.DownloadURL)
	if err != nil {
		s.logger.DebugContext(ctx, "File preview failed", "url", entry.DownloadURL, "error", err)
		return Outcome{Kind: KindNone}
	}

	out := textOutcome(text, entry.DownloadURL)
	out.Text = "FILE: " + entry.Name + "\n\n" + text
	return out
}

// Candidates lists the raw documentation URLs probed for a tree or root location:
// SKILL.md then README.md under the parsed ref, repeated under master when the ref is main.
func Candidates(loc githuburl.Location) []string {
	refs := []string{loc.Ref}
	if loc.Ref == githuburl.DefaultBranch {
		refs = append(refs, fallbackBranch)
	}

	out := make([]string, 0, len(refs)*2)
	for _, ref := range refs {
		for _, name := range []string{"SKILL.md", "README.md"} {
			out = append(out, loc.RawURL(ref, path.Join(loc.Path, name)))
		}
	}
	return out
}

func textOutcome(text, source string) Outcome {
	out := Outcome{Kind: KindText, Text: text, Source: source}
	if fm, ok := ParseFrontMatter(text); ok {
		out.FrontMatter = fm
	}
	return out
}
