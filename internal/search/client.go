// Package search queries the skill search service through the relay.
package search

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/javi11/skillvault/internal/adapter"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/httpclient"
)

// ErrEmptyQuery is returned when Search is called without a query
var ErrEmptyQuery = errors.New("search query is required")

const maxResponseBytes = 8 << 20

// Client calls the relay's search endpoints
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a search client. A nil httpClient uses httpclient.NewDefault.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefault()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  slog.Default().With("component", "search"),
	}
}

// Search returns the raw hits for query. Whichever of data.data, items or data
// holds the result array is used; anything else yields no hits.
func (c *Client) Search(ctx context.Context, query string) ([]adapter.RawHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := c.get(ctx, "/search?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		var bare []any
		if json.Unmarshal(body, &bare) == nil {
			return toHits(bare), nil
		}
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := toHits(unwrapItems(envelope))
	c.logger.DebugContext(ctx, "Search completed", "query", query, "hits", len(hits))
	return hits, nil
}

// SearchResults searches and adapts every hit, most starred first
func (c *Client) SearchResults(ctx context.Context, query string) ([]adapter.ScrapeResult, error) {
	hits, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return AdaptAll(hits), nil
}

// SkillDetails returns the raw detail document for one skill id
func (c *Client) SkillDetails(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, fmt.Errorf("skill id is required")
	}

	body, err := c.get(ctx, "/skills/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var details map[string]any
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("failed to decode skill details: %w", err)
	}
	return details, nil
}

// AdaptAll adapts hits and orders them by stars, descending. Equal star counts keep search order.
func AdaptAll(hits []adapter.RawHit) []adapter.ScrapeResult {
	results := make([]adapter.ScrapeResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, adapter.Adapt(hit))
	}
	slices.SortStableFunc(results, func(a, b adapter.ScrapeResult) int {
		return cmp.Compare(b.Stars, a.Stars)
	})
	return results
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, sharedErrors.NewUpstreamError(req.URL.String(), resp.StatusCode, body)
	}
	return body, nil
}

func unwrapItems(envelope map[string]any) []any {
	if data, ok := envelope["data"].(map[string]any); ok {
		if items, ok := data["data"].([]any); ok {
			return items
		}
	}
	if items, ok := envelope["items"].([]any); ok {
		return items
	}
	if items, ok := envelope["data"].([]any); ok {
		return items
	}
	return nil
}

func toHits(items []any) []adapter.RawHit {
	hits := make([]adapter.RawHit, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			hits = append(hits, adapter.RawHit(m))
		}
	}
	return hits
}
