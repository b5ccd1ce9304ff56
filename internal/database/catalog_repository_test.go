package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func makeNodes(entryID string, n int) []*ArchiveNode {
	nodes := make([]*ArchiveNode, n)
	for i := range nodes {
		size := int64(i)
		nodes[i] = &ArchiveNode{
			EntryID:      entryID,
			NodeType:     NodeTypeFile,
			Path:         fmt.Sprintf("files/f%04d.md", i),
			DirPath:      "files/",
			Basename:     fmt.Sprintf("f%04d.md", i),
			Ext:          strPtr(".md"),
			Depth:        2,
			SizeBytes:    &size,
			ContentType:  strPtr("text/markdown"),
			StoragePath:  strPtr("local/" + entryID + "/archive"),
			InternalPath: strPtr(fmt.Sprintf("repo-main/files/f%04d.md", i)),
		}
	}
	return nodes
}

func TestCreateEntry_StartsWithoutArchive(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()

	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &CatalogEntry{
		UserID:          "user-1",
		Title:           "Cool Skill",
		Description:     "Does things",
		Category:        "search",
		Level:           "Intermediate",
		Tags:            []string{"ai", "tools"},
		URL:             "https://github.com/acme/widgets",
		Stars:           42,
		Forks:           7,
		RemoteUpdatedAt: &updated,
	}
	require.NoError(t, db.Catalog.CreateEntry(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, StatusOperational, entry.Status)

	got, err := db.Catalog.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Cool Skill", got.Title)
	assert.Equal(t, []string{"ai", "tools"}, got.Tags)
	assert.Equal(t, 42, got.Stars)
	assert.Equal(t, 7, got.Forks)
	assert.Nil(t, got.StoragePath)
	assert.False(t, got.HasArchive())
	require.NotNil(t, got.RemoteUpdatedAt)
	assert.True(t, updated.Equal(*got.RemoteUpdatedAt))
}

func TestGetEntry_Missing(t *testing.T) {
	db := NewTestDB(t)

	got, err := db.Catalog.GetEntry(t.Context(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttachArchive_SetOnce(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()
	entry := CreateTestEntry(t, db, "user-1", "Skill")

	require.NoError(t, db.Catalog.AttachArchive(ctx, entry.ID, "user-1/"+entry.ID+"/archive"))

	err := db.Catalog.AttachArchive(ctx, entry.ID, "somewhere/else")
	assert.ErrorIs(t, err, ErrArchiveAlreadyLinked)

	got, err := db.Catalog.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StoragePath)
	assert.Equal(t, "user-1/"+entry.ID+"/archive", *got.StoragePath)

	err = db.Catalog.AttachArchive(ctx, "missing", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArchiveAlreadyLinked)
}

func TestListEntries(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()

	a := CreateTestEntry(t, db, "user-1", "Alpha")
	b := CreateTestEntry(t, db, "user-1", "Beta")
	CreateTestEntry(t, db, "user-2", "Gamma")

	mine, err := db.Catalog.ListEntries(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := db.Catalog.ListEntries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byIDs, err := db.Catalog.ListEntriesByIDs(ctx, "user-1", []string{b.ID, a.ID, "unknown"})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, "Alpha", byIDs[0].Title)
	assert.Equal(t, "Beta", byIDs[1].Title)

	none, err := db.Catalog.ListEntriesByIDs(ctx, "user-2", []string{a.ID})
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := db.Catalog.ListEntriesByIDs(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBulkInsertNodes_Chunks(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()
	entry := CreateTestEntry(t, db, "user-1", "Skill")

	var chunks []int
	inserted, err := db.Catalog.BulkInsertNodes(ctx, makeNodes(entry.ID, 1200), 500, func(chunk, total, n int) {
		assert.Equal(t, 3, total)
		chunks = append(chunks, n)
	})
	require.NoError(t, err)
	assert.Equal(t, 1200, inserted)
	assert.Equal(t, []int{500, 1000, 1200}, chunks)

	count, err := db.Catalog.CountNodes(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200, count)
}

func TestBulkInsertNodes_StopsAtFailingChunk(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()
	entry := CreateTestEntry(t, db, "user-1", "Skill")

	nodes := makeNodes(entry.ID, 1200)
	// Collides with node 0 on (entry_id, path), so chunk 2 fails
	nodes[700].Path = nodes[0].Path

	var seen []int
	inserted, err := db.Catalog.BulkInsertNodes(ctx, nodes, 500, func(chunk, _, _ int) {
		seen = append(seen, chunk)
	})
	require.Error(t, err)
	assert.Equal(t, 500, inserted)
	assert.Equal(t, []int{1}, seen)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 2, chunkErr.Chunk)
	assert.Equal(t, 3, chunkErr.TotalChunks)
	assert.Equal(t, 500, chunkErr.Inserted)

	count, err := db.Catalog.CountNodes(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, count, "only the first chunk is persisted")

	last, err := db.Catalog.GetNodeByPath(ctx, entry.ID, nodes[1199].Path)
	require.NoError(t, err)
	assert.Nil(t, last, "chunk 3 is never attempted")
}

func TestBulkInsertNodes_Empty(t *testing.T) {
	db := NewTestDB(t)

	inserted, err := db.Catalog.BulkInsertNodes(t.Context(), nil, 500, func(int, int, int) {
		t.Fatal("no chunk expected")
	})
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestListChildren(t *testing.T) {
	db := NewTestDB(t)
	ctx := t.Context()
	entry := CreateTestEntry(t, db, "user-1", "Skill")

	nodes := []*ArchiveNode{
		{EntryID: entry.ID, NodeType: NodeTypeFile, Path: "README.md", Basename: "README.md", Depth: 1, InternalPath: strPtr("r-main/README.md")},
		{EntryID: entry.ID, NodeType: NodeTypeDir, Path: "src/", Basename: "src", Depth: 1},
		{EntryID: entry.ID, NodeType: NodeTypeFile, Path: "src/index.js", DirPath: "src/", Basename: "index.js", Depth: 2},
	}
	_, err := db.Catalog.BulkInsertNodes(ctx, nodes, 0, nil)
	require.NoError(t, err)

	root, err := db.Catalog.ListChildren(ctx, entry.ID, "")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "README.md", root[0].Path)
	assert.Equal(t, "src/", root[1].Path)
	assert.True(t, root[1].IsDir())
	assert.Nil(t, root[1].InternalPath)

	src, err := db.Catalog.ListChildren(ctx, entry.ID, "src/")
	require.NoError(t, err)
	require.Len(t, src, 1)
	assert.Equal(t, "index.js", src[0].Basename)

	all, err := db.Catalog.ListNodes(ctx, entry.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	readme, err := db.Catalog.GetNodeByPath(ctx, entry.ID, "README.md")
	require.NoError(t, err)
	require.NotNil(t, readme)
	require.NotNil(t, readme.InternalPath)
	assert.Equal(t, "r-main/README.md", *readme.InternalPath)
}
