// Package relay talks to the fetch-and-relay service that every remote read goes
// through, and also provides a server implementing that service.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/httpclient"
)

const (
	downloadPath         = "/download"
	previewPath          = "/preview"
	directoryListingPath = "/directory-listing"

	defaultMaxDownloadBytes = 200 << 20
	maxPreviewBytes         = 2 << 20
)

// ListingEntry is one item of a remote directory listing
type ListingEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "file" or "dir"
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	Path        string `json:"path"`
}

// ClientConfig configures a relay Client
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RetryAttempts    uint
	RetryDelay       time.Duration
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Client fetches remote resources through the relay
type Client struct {
	baseURL    string
	http       *http.Client
	attempts   uint
	retryDelay time.Duration
	maxBytes   int64
	log        *slog.Logger
}

// NewClient creates a relay client
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = httpclient.ArchiveTimeout
		}
		httpClient = httpclient.New(httpclient.WithTimeout(timeout))
	}

	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	maxBytes := cfg.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpClient,
		attempts:   attempts,
		retryDelay: delay,
		maxBytes:   maxBytes,
		log:        slog.Default().With("component", "relay-client"),
	}
}

// Download retrieves the raw bytes at target. Transport errors, 5xx and 429
// answers are retried; other upstream failures return at once as *errors.UpstreamError.
func (c *Client) Download(ctx context.Context, target string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			b, err := c.fetch(ctx, downloadPath, target, c.maxBytes)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !sharedErrors.IsNonRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Retrying archive download",
				"attempt", n+1,
				"max_attempts", c.attempts,
				"url", target,
				"error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, unwrapNonRetryable(err)
	}

	return body, nil
}

// Preview retrieves the text at target with a single attempt
func (c *Client) Preview(ctx context.Context, target string) (string, error) {
	body, err := c.fetch(ctx, previewPath, target, maxPreviewBytes)
	if err != nil {
		return "", unwrapNonRetryable(err)
	}
	return string(body), nil
}

// DirectoryListing retrieves a hosting-API contents listing. A single-object
// answer is returned as a one-element slice.
func (c *Client) DirectoryListing(ctx context.Context, apiURL string) ([]ListingEntry, error) {
	body, err := c.fetch(ctx, directoryListingPath, apiURL, maxPreviewBytes)
	if err != nil {
		return nil, unwrapNonRetryable(err)
	}
	return DecodeListing(body)
}

// DecodeListing parses a listing that is either a JSON array or a single object
func DecodeListing(body []byte) ([]ListingEntry, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var one ListingEntry
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return nil, fmt.Errorf("failed to decode directory listing: %w", err)
		}
		return []ListingEntry{one}, nil
	}

	var entries []ListingEntry
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing: %w", err)
	}
	if entries == nil {
		entries = []ListingEntry{}
	}
	return entries, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, target string, limit int64) ([]byte, error) {
	if !ValidTarget(target) {
		return nil, sharedErrors.NewNonRetryableError("invalid relay target", fmt.Errorf("%w: %q", sharedErrors.ErrInvalidURL, target))
	}

	reqURL := c.baseURL + endpoint + "?url=" + url.QueryEscape(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, sharedErrors.NewNonRetryableError("failed to build relay request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, sharedErrors.NewNonRetryableError("relay request cancelled", ctx.Err())
		}
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		upstreamErr := sharedErrors.NewUpstreamError(target, resp.StatusCode, snippet)
		if upstreamErr.Retryable() {
			return nil, upstreamErr
		}
		return nil, sharedErrors.NewNonRetryableError("upstream rejected request", upstreamErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, sharedErrors.NewNonRetryableError(fmt.Sprintf("response exceeds %d bytes", limit), nil)
	}

	return body, nil
}

// unwrapNonRetryable strips the retry marker so callers see the real cause
func unwrapNonRetryable(err error) error {
	var nr *sharedErrors.NonRetryableError
	if errors.As(err, &nr) && nr.Unwrap() != nil {
		return nr.Unwrap()
	}
	return err
}

// ValidTarget reports whether raw is an absolute http or https URL
func ValidTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
