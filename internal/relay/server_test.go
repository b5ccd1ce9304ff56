package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayApp(t *testing.T, cfg ServerConfig) *fiber.App {
	t.Helper()

	app := fiber.New()
	NewServer(cfg).RegisterRoutes(app.Group("/relay"))
	return app
}

func doGet(t *testing.T, app *fiber.App, path string) (*http.Response, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerDownload(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/ok.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Write([]byte("zipbytes"))
		case "/raw":
			w.Write([]byte("no type"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	app := newRelayApp(t, ServerConfig{UpstreamURL: "https://skillsmp.com/api/v1", APIKey: "secret"})

	resp, body := doGet(t, app, "/relay/download?url="+url.QueryEscape(upstream.URL+"/ok.zip"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zipbytes", body)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Empty(t, gotAuth, "api key is only sent to the search host")

	resp, _ = doGet(t, app, "/relay/download?url="+url.QueryEscape(upstream.URL+"/raw"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doGet(t, app, "/relay/download?url="+url.QueryEscape(upstream.URL+"/missing"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Upstream Error: 404 - Not Found", body)
}

func TestServerDownload_BadTarget(t *testing.T) {
	app := newRelayApp(t, ServerConfig{})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "missing", path: "/relay/download", want: "Missing url parameter"},
		{name: "scheme", path: "/relay/download?url=" + url.QueryEscape("ftp://x/y"), want: "Invalid url parameter"},
		{name: "preview missing", path: "/relay/preview", want: "Missing url parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doGet(t, app, tt.path)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestServerPreview_PassesFailureStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/README.md" {
			w.Write([]byte("# Title"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	app := newRelayApp(t, ServerConfig{})

	resp, body := doGet(t, app, "/relay/preview?url="+url.QueryEscape(upstream.URL+"/README.md"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# Title", body)

	resp, _ = doGet(t, app, "/relay/preview?url="+url.QueryEscape(upstream.URL+"/secret"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServerDirectoryListing_NormalizesObject(t *testing.T) {
	var gotAccept, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"name":"SKILL.md","type":"file","size":5,"download_url":"https://raw/s","path":"SKILL.md","sha":"abc"}`))
	}))
	defer upstream.Close()

	app := newRelayApp(t, ServerConfig{GitHubToken: "ghp_x"})

	resp, body := doGet(t, app, "/relay/directory-listing?url="+url.QueryEscape(upstream.URL+"/repos/a/b/contents/SKILL.md"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, githubAcceptHeader, gotAccept)
	assert.Equal(t, "Bearer ghp_x", gotAuth)

	var entries []ListingEntry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "SKILL.md", entries[0].Name)
	assert.Equal(t, "https://raw/s", entries[0].DownloadURL)
}

func TestServerSearch_ForwardsWithKey(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer upstream.Close()

	app := newRelayApp(t, ServerConfig{UpstreamURL: upstream.URL + "/api/v1", APIKey: "secret"})

	resp, body := doGet(t, app, "/relay/search?q="+url.QueryEscape("pdf tools"))
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.JSONEq(t, `{"data":[]}`, body)
	assert.Equal(t, "/api/v1/skills/ai-search", gotPath)
	assert.Equal(t, "pdf tools", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)

	resp, _ = doGet(t, app, "/relay/skills/abc")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "/api/v1/skills/abc", gotPath)
}

func TestServerSearch_MissingKey(t *testing.T) {
	app := newRelayApp(t, ServerConfig{UpstreamURL: "https://skillsmp.com/api/v1"})

	resp, _ := doGet(t, app, "/relay/search?q=x")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServerDownload_SendsKeyToSearchHost(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("zip"))
	}))
	defer upstream.Close()

	app := newRelayApp(t, ServerConfig{UpstreamURL: upstream.URL, APIKey: "secret"})

	resp, _ := doGet(t, app, "/relay/download?url="+url.QueryEscape(upstream.URL+"/file.zip"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer secret", gotAuth)
}
