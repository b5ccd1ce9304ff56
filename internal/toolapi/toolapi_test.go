package toolapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/auth"
	"github.com/javi11/skillvault/internal/blobstore"
	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/importer"
	"github.com/javi11/skillvault/internal/retrieval"
	"github.com/javi11/skillvault/internal/testutil"
)

type fixture struct {
	app        *fiber.App
	db         *database.DB
	token      string
	connection *database.ToolConnection

	withDocs  *database.CatalogEntry // SKILL.md, docs and assets; normalized category
	readme    *database.CatalogEntry // README.md only; legacy category
	noArchive *database.CatalogEntry
	foreign   *database.CatalogEntry // granted but owned by another user
}

func commit(t *testing.T, service *importer.Service, userID, title, category string, archive []byte) *database.CatalogEntry {
	t.Helper()

	result, err := service.Commit(t.Context(), nil, importer.CommitRequest{
		Descriptor: adapter.ScrapeResult{Title: title, Category: category, SourceURL: "https://github.com/acme/" + strings.ToLower(title)},
		UserID:     userID,
		Archive:    archive,
	})
	require.NoError(t, err)
	return result.Entry
}

func setupTools(t *testing.T) *fixture {
	t.Helper()

	db := database.NewTestDB(t)
	blobs, err := blobstore.NewFileStore(afero.NewMemMapFs(), "/blobs")
	require.NoError(t, err)

	service := importer.NewService(importer.ServiceConfig{
		DefaultCategory: "Imported",
		DefaultLevel:    "Intermediate",
	}, db.Catalog, db.Categories, blobs, nil, nil)

	f := &fixture{db: db}
	f.withDocs = commit(t, service, "user-1", "Widgets", "Imported", testutil.BuildZip(t,
		testutil.ZipEntry{Name: "widgets-main/SKILL.md", Body: "---\nname: widgets\n---\n# Widgets"},
		testutil.ZipEntry{Name: "widgets-main/docs/guide.md", Body: "guide"},
		testutil.ZipEntry{Name: "widgets-main/assets/logo.png", Body: "\x89PNG"},
		testutil.ZipEntry{Name: "widgets-main/assets/big.bin", Body: strings.Repeat("x", 64)},
		testutil.ZipEntry{Name: "widgets-main/src/main.py", Body: "print(1)"},
	))
	f.readme = commit(t, service, "user-1", "Notes", "Weird Stuff", testutil.Files(t,
		"notes-main/README.md", "# Notes",
	))
	f.foreign = commit(t, service, "user-2", "Other", "Imported", testutil.Files(t,
		"other-main/SKILL.md", "# Other",
	))
	f.noArchive = database.CreateTestEntry(t, db, "user-1", "Pending")

	f.token, f.connection, err = auth.NewTokenService(db.Connections).CreateConnection(t.Context(), "user-1", "laptop",
		[]string{f.withDocs.ID, f.readme.ID, f.noArchive.ID, f.foreign.ID})
	require.NoError(t, err)

	cache, err := retrieval.NewArchiveCache(retrieval.CacheConfig{})
	require.NoError(t, err)

	f.app = fiber.New()
	NewServer(Config{}, db.Connections, db.Catalog, db.Categories, retrieval.NewReader(blobs, cache)).
		RegisterRoutes(f.app.Group("/mcp"))
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, json.RawMessage) {
	t.Helper()
	return doWithToken(t, f.app, method, path, body, f.token)
}

func doWithToken(t *testing.T, app *fiber.App, method, path string, body any, token string) (int, json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
	}
	return resp.StatusCode, envelope.Data
}

func TestAuthentication(t *testing.T) {
	f := setupTools(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "unknown token", token: "svt_nope", want: http.StatusUnauthorized},
		{name: "valid token", token: f.token, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := doWithToken(t, f.app, http.MethodGet, "/mcp/skills", nil, tt.token)
			assert.Equal(t, tt.want, status)
		})
	}

	got, err := f.db.Connections.GetByTokenHash(t.Context(), auth.HashToken(f.token))
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)

	require.NoError(t, f.db.Connections.Revoke(t.Context(), f.connection.ID))
	status, _ := f.do(t, http.MethodGet, "/mcp/skills", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestListCategories(t *testing.T) {
	f := setupTools(t)

	status, data := f.do(t, http.MethodGet, "/mcp/categories", nil)
	require.Equal(t, http.StatusOK, status)

	var body struct {
		Categories []CategoryView `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	require.Len(t, body.Categories, 2, "foreign entries and uncategorized entries contribute nothing")

	imported := body.Categories[0]
	assert.Equal(t, "Imported", imported.Name)
	require.NotNil(t, imported.ID)
	assert.Equal(t, "id:"+*imported.ID, imported.Key)
	assert.False(t, imported.IsLegacy)

	legacy := body.Categories[1]
	assert.Equal(t, "Weird Stuff", legacy.Name)
	assert.Equal(t, "legacy:weird-stuff", legacy.Key)
	assert.Nil(t, legacy.ID)
	assert.True(t, legacy.IsLegacy)
}

func TestListSkills(t *testing.T) {
	f := setupTools(t)

	imported, err := f.db.Categories.GetBySlug(t.Context(), "imported")
	require.NoError(t, err)
	require.NotNil(t, imported)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all granted and owned", query: "", want: []string{f.withDocs.ID, f.readme.ID, f.noArchive.ID}},
		{name: "by category id", query: "?categoryId=" + imported.ID, want: []string{f.withDocs.ID}},
		{name: "by normalized slug", query: "?category=imported", want: []string{f.withDocs.ID}},
		{name: "by legacy slug", query: "?category=weird-stuff", want: []string{f.readme.ID}},
		{name: "unknown slug", query: "?category=nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, http.MethodGet, "/mcp/skills"+tt.query, nil)
			require.Equal(t, http.StatusOK, status)

			var body struct {
				Skills []SkillView `json:"skills"`
			}
			require.NoError(t, json.Unmarshal(data, &body))
			var ids []string
			for _, s := range body.Skills {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestSkillDescription(t *testing.T) {
	f := setupTools(t)

	tests := []struct {
		name    string
		skillID string
		want    int
	}{
		{name: "missing id", skillID: "", want: http.StatusBadRequest},
		{name: "not granted", skillID: "someone-elses", want: http.StatusForbidden},
		{name: "granted but foreign", skillID: f.foreign.ID, want: http.StatusNotFound},
		{name: "ok", skillID: f.withDocs.ID, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, http.MethodGet, "/mcp/skill-description?skillId="+tt.skillID, nil)
			require.Equal(t, tt.want, status)
			if tt.want != http.StatusOK {
				return
			}

			var body struct {
				Skill SkillView `json:"skill"`
			}
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, "Widgets", body.Skill.Title)
			assert.Equal(t, "https://github.com/acme/widgets", body.Skill.SourceURL)
			assert.True(t, body.Skill.HasArchive)
		})
	}
}

func loadSkill(t *testing.T, f *fixture, skillID string, req any) LoadSkillResponse {
	t.Helper()

	status, data := f.do(t, http.MethodPost, "/mcp/load-skill?skillId="+skillID, req)
	require.Equal(t, http.StatusOK, status)

	var resp LoadSkillResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestLoadSkill_DocumentAndAttachments(t *testing.T) {
	f := setupTools(t)

	resp := loadSkill(t, f, f.withDocs.ID, nil)
	require.NotNil(t, resp.SkillMdPath)
	assert.Equal(t, "SKILL.md", *resp.SkillMdPath)
	require.NotNil(t, resp.SkillMd)
	assert.Contains(t, *resp.SkillMd, "# Widgets")

	var paths []string
	for _, a := range resp.Attachments {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"assets/big.bin", "assets/logo.png", "docs/guide.md"}, paths, "text outside attachment dirs is not offered")
	assert.Empty(t, resp.Included, "nothing requested")
	assert.Equal(t, Limits{MaxFiles: defaultMaxFiles, MaxAttachmentBytes: defaultMaxAttachmentBytes}, resp.Limits)
}

func TestLoadSkill_IncludeAll(t *testing.T) {
	f := setupTools(t)

	resp := loadSkill(t, f, f.withDocs.ID, map[string]any{
		"includeAllAttachments": true,
		"maxAttachmentBytes":    16,
	})

	byPath := make(map[string]IncludedFile)
	for _, inc := range resp.Included {
		byPath[inc.Path] = inc
	}
	require.Len(t, byPath, 3)

	assert.Equal(t, IncludedFile{Path: "assets/big.bin", Type: "omitted", Reason: "too_large"}, byPath["assets/big.bin"])
	assert.Equal(t, "base64", byPath["assets/logo.png"].Type)
	decoded, err := base64.StdEncoding.DecodeString(byPath["assets/logo.png"].Base64)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(decoded))
	assert.Equal(t, IncludedFile{Path: "docs/guide.md", Type: "text", Text: "guide"}, byPath["docs/guide.md"])
	assert.Equal(t, int64(16), resp.Limits.MaxAttachmentBytes)
}

func TestLoadSkill_RequestedPaths(t *testing.T) {
	f := setupTools(t)

	resp := loadSkill(t, f, f.withDocs.ID, LoadSkillRequest{
		Paths: []string{"src/main.py", "widgets-main/src/main.py", "missing.txt"},
	})
	require.Len(t, resp.Included, 1, "canonical and internal paths resolve to the same file")
	assert.Equal(t, IncludedFile{Path: "src/main.py", Type: "text", Text: "print(1)"}, resp.Included[0])
}

func TestLoadSkill_ReadmeFallbackAndLimits(t *testing.T) {
	f := setupTools(t)

	resp := loadSkill(t, f, f.readme.ID, nil)
	require.NotNil(t, resp.SkillMdPath)
	assert.Equal(t, "README.md", *resp.SkillMdPath)
	assert.Equal(t, "# Notes", *resp.SkillMd)

	resp = loadSkill(t, f, f.withDocs.ID, map[string]any{"maxFiles": 1})
	assert.Equal(t, "SKILL.md", *resp.SkillMdPath)
	assert.Empty(t, resp.Attachments, "only the first file is considered")
}

func TestLoadSkill_Errors(t *testing.T) {
	f := setupTools(t)

	tests := []struct {
		name    string
		skillID string
		want    int
	}{
		{name: "missing id", skillID: "", want: http.StatusBadRequest},
		{name: "not granted", skillID: "x", want: http.StatusForbidden},
		{name: "foreign", skillID: f.foreign.ID, want: http.StatusNotFound},
		{name: "no archive", skillID: f.noArchive.ID, want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := f.do(t, http.MethodPost, "/mcp/load-skill?skillId="+tt.skillID, nil)
			assert.Equal(t, tt.want, status)
		})
	}
}
