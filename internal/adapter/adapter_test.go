package adapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func decode(t *testing.T, raw string) RawHit {
	t.Helper()
	var hit RawHit
	require.NoError(t, json.Unmarshal([]byte(raw), &hit))
	return hit
}

func TestAdaptAt_NestedSkill(t *testing.T) {
	hit := decode(t, `{
		"skill": {
			"name": "Cool Skill",
			"description": "Does cool things",
			"githubUrl": "https://github.com/acme/widgets/tree/main/plugins/search/cool-skill",
			"stars": 12,
			"readme": "# Cool"
		},
		"metadata": {"stars": 40, "forks": 3, "updated_at": "2025-12-01T10:00:00Z"},
		"tags": ["search", "agents"],
		"score": 0.876
	}`)

	got := AdaptAt(hit, fixedNow)

	assert.Equal(t, "Cool Skill", got.Title)
	assert.Equal(t, "Does cool things", got.Description)
	assert.Equal(t, "https://github.com/acme/widgets/tree/main/plugins/search/cool-skill", got.SourceURL)
	assert.Equal(t, "https://github.com/acme/widgets/archive/refs/heads/main.zip", got.DownloadURL)
	assert.Equal(t, "search", got.Category)
	assert.Equal(t, []string{"agents"}, got.Tags)
	assert.Equal(t, 88, got.Latency)
	assert.Equal(t, 40, got.Stars)
	assert.Equal(t, 3, got.Forks)
	assert.Equal(t, "2025-12-01T10:00:00Z", got.UpdatedAt)
	assert.Equal(t, "# Cool", got.Content)
	require.NotNil(t, got.UpdatedTime())
}

func TestAdaptAt_PluginsTreeCategory(t *testing.T) {
	hit := RawHit{"url": "https://github.com/acme/widgets/tree/main/plugins/search/cool-skill"}

	got := AdaptAt(hit, fixedNow)

	assert.Equal(t, "search", got.Category)
	assert.Equal(t, "Unknown Skill", got.Title)
	assert.Equal(t, "File: N/A", got.Description)
}

func TestAdaptAt_CategoryPrecedence(t *testing.T) {
	tests := []struct {
		name string
		hit  RawHit
		want string
	}{
		{
			name: "nested category wins",
			hit:  RawHit{"skill": map[string]any{"category": " devops "}, "category": "other"},
			want: "devops",
		},
		{
			name: "top-level category",
			hit:  RawHit{"category": "writing", "categories": []any{"misc"}},
			want: "writing",
		},
		{
			name: "first of categories array",
			hit:  RawHit{"categories": []any{"data", "ml"}},
			want: "data",
		},
		{
			name: "blank category falls through",
			hit:  RawHit{"category": "   ", "skill": map[string]any{"categories": []any{"ops"}}},
			want: "ops",
		},
		{
			name: "filename pattern, greedy group",
			hit:  RawHit{"filename": "plugins-alpha-skills-plugins-beta-tools-skills.zip"},
			want: "alpha-skills-plugins-beta-tools",
		},
		{
			name: "filename pattern, last of separate matches",
			hit:  RawHit{"filename": "plugins-alpha-skills_plugins-beta-tools-skills.zip"},
			want: "beta-tools",
		},
		{
			name: "nothing",
			hit:  RawHit{"filename": "skill.zip"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptAt(tt.hit, fixedNow).Category)
		})
	}
}

func TestAdaptAt_TitleAndDescriptionFallbacks(t *testing.T) {
	got := AdaptAt(RawHit{"filename": "SKILL.md", "summary": "short summary"}, fixedNow)
	assert.Equal(t, "SKILL.md", got.Title)
	assert.Equal(t, "short summary", got.Description)

	got = AdaptAt(RawHit{"filename": "notes.md"}, fixedNow)
	assert.Equal(t, "File: notes.md", got.Description)

	got = AdaptAt(RawHit{"title": "Top Title", "download_url": "https://cdn.example.com/x.zip"}, fixedNow)
	assert.Equal(t, "Top Title", got.Title)
	assert.Equal(t, "https://cdn.example.com/x.zip", got.SourceURL)
	assert.Equal(t, "https://cdn.example.com/x.zip", got.DownloadURL)
}

func TestAdaptAt_Defaults(t *testing.T) {
	got := AdaptAt(RawHit{}, fixedNow)

	assert.Equal(t, "Unknown Skill", got.Title)
	assert.Equal(t, "", got.SourceURL)
	assert.Equal(t, "", got.DownloadURL)
	assert.Empty(t, got.Tags)
	assert.Equal(t, 0, got.Latency)
	assert.Equal(t, 0, got.Stars)
	assert.Equal(t, 0, got.Forks)
	assert.Equal(t, "2026-03-01T12:00:00Z", got.UpdatedAt)
}

func TestAdaptAt_ToleratesUnexpectedTypes(t *testing.T) {
	hits := []RawHit{
		nil,
		{"skill": "not-an-object", "metadata": 7},
		{"skill": nil, "metadata": nil, "tags": "comma,separated"},
		{"skill": []any{1, 2}, "categories": map[string]any{"a": 1}},
		{"score": "abc", "tags": []any{nil, 3, "ok"}},
		{"score": map[string]any{}, "url": 42, "filename": true},
		{"metadata": map[string]any{"stars": "12", "forks": []any{}}},
		{"skill": map[string]any{"metadata": map[string]any{"stars": 1e300}}},
	}

	for _, hit := range hits {
		assert.NotPanics(t, func() {
			got := AdaptAt(hit, fixedNow)
			assert.NotEmpty(t, got.Title)
			assert.NotNil(t, got.Tags)
		})
	}

	got := AdaptAt(RawHit{"metadata": map[string]any{"stars": "12"}}, fixedNow)
	assert.Equal(t, 12, got.Stars)

	got = AdaptAt(RawHit{"tags": []any{nil, 3, "ok"}}, fixedNow)
	assert.Equal(t, []string{"3", "ok"}, got.Tags)
}
