package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/javi11/skillvault/internal/httpclient"
)

const (
	githubAcceptHeader = "application/vnd.github.v3+json"
	browserUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ServerConfig configures the relay endpoints
type ServerConfig struct {
	UpstreamURL      string // Search service base, e.g. https://skillsmp.com/api/v1
	APIKey           string // Sent as a bearer token to the search upstream only
	GitHubToken      string // Sent to the GitHub contents API when set
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Server proxies remote fetches so browsers and the importer never talk to upstreams directly
type Server struct {
	cfg          ServerConfig
	http         *http.Client
	upstreamHost string
	logger       *slog.Logger
}

// NewServer creates a relay server
func NewServer(cfg ServerConfig) *Server {
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.WithTimeout(httpclient.ArchiveTimeout))
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = defaultMaxDownloadBytes
	}

	host := ""
	if u, err := url.Parse(cfg.UpstreamURL); err == nil {
		host = u.Hostname()
	}

	return &Server{
		cfg:          cfg,
		http:         client,
		upstreamHost: host,
		logger:       slog.Default().With("component", "relay"),
	}
}

// RegisterRoutes registers the relay routes on a router group
func (s *Server) RegisterRoutes(r fiber.Router) {
	r.Get(downloadPath, s.handleDownload)
	r.Get(previewPath, s.handlePreview)
	r.Get(directoryListingPath, s.handleDirectoryListing)
	r.Get("/search", s.handleSearch)
	r.Get("/skills/:id", s.handleSkill)
}

type upstreamResponse struct {
	status      int
	statusText  string
	contentType string
	body        []byte
}

func (s *Server) get(ctx context.Context, target string, header http.Header) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.cfg.MaxDownloadBytes {
		return nil, fmt.Errorf("upstream response exceeds %d bytes", s.cfg.MaxDownloadBytes)
	}

	return &upstreamResponse{
		status:      resp.StatusCode,
		statusText:  http.StatusText(resp.StatusCode),
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// isSearchHost reports whether target belongs to the configured search upstream
func (s *Server) isSearchHost(target string) bool {
	if s.upstreamHost == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == s.upstreamHost || strings.HasSuffix(host, "."+s.upstreamHost)
}

func (s *Server) fetchHeaders(target string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "*/*")
	if s.isSearchHost(target) && s.cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	return h
}

// targetParam returns the url query parameter, or a message explaining why it is unusable
func targetParam(c *fiber.Ctx) (string, string) {
	target := c.Query("url")
	if target == "" {
		return "", "Missing url parameter"
	}
	if !ValidTarget(target) {
		return "", "Invalid url parameter"
	}
	return target, ""
}

func upstreamFailure(c *fiber.Ctx, resp *upstreamResponse) error {
	msg := strings.TrimSpace(fmt.Sprintf("Upstream Error: %d - %s", resp.status, resp.statusText))
	return c.Status(resp.status).SendString(msg)
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	target, problem := targetParam(c)
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).SendString(problem)
	}

	s.logger.DebugContext(c.UserContext(), "Download request", "url", target)

	resp, err := s.get(c.UserContext(), target, s.fetchHeaders(target))
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Download failed", "url", target, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
	if resp.status >= 400 {
		return upstreamFailure(c, resp)
	}

	contentType := resp.contentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(resp.status).Send(resp.body)
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	target, problem := targetParam(c)
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).SendString(problem)
	}

	resp, err := s.get(c.UserContext(), target, s.fetchHeaders(target))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
	if resp.status >= 400 {
		return upstreamFailure(c, resp)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(resp.status).Send(resp.body)
}

func (s *Server) handleDirectoryListing(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" || !ValidTarget(target) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing url"})
	}

	h := http.Header{}
	h.Set("Accept", githubAcceptHeader)
	h.Set("User-Agent", httpclient.DefaultUserAgent)
	if s.cfg.GitHubToken != "" {
		h.Set("Authorization", "Bearer "+s.cfg.GitHubToken)
	}

	resp, err := s.get(c.UserContext(), target, h)
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Directory listing failed", "url", target, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if resp.status >= 400 {
		return c.Status(resp.status).JSON(fiber.Map{
			"error": fmt.Sprintf("Upstream Error: %d - %s", resp.status, resp.statusText),
		})
	}

	entries, err := DecodeListing(resp.body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	return s.forward(c, "/skills/ai-search?q="+url.QueryEscape(c.Query("q")))
}

func (s *Server) handleSkill(c *fiber.Ctx) error {
	return s.forward(c, "/skills/"+url.PathEscape(c.Params("id")))
}

// forward relays a request to the search upstream, passing status and body through
func (s *Server) forward(c *fiber.Ctx, endpoint string) error {
	if s.cfg.APIKey == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Missing search API key"})
	}

	target := strings.TrimRight(s.cfg.UpstreamURL, "/") + endpoint
	s.logger.DebugContext(c.UserContext(), "Forwarding search request", "target", target)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.cfg.APIKey)
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "application/json, text/plain, */*")

	resp, err := s.get(c.UserContext(), target, h)
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Search forward failed", "target", target, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if json.Valid(resp.body) {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	}
	return c.Status(resp.status).Send(resp.body)
}
