package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/importer/steps"
	"github.com/javi11/skillvault/internal/indexer"
	"github.com/javi11/skillvault/internal/testutil"
)

// countingBlobs serves fixed blobs and counts Get calls
type countingBlobs struct {
	blobs map[string][]byte
	gets  atomic.Int32
	delay time.Duration
}

func (c *countingBlobs) Get(_ context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	data, ok := c.blobs[key]
	if !ok {
		return nil, assert.AnError
	}
	return data, nil
}

func newReader(t *testing.T, blobs *countingBlobs) *Reader {
	t.Helper()
	cache, err := NewArchiveCache(CacheConfig{Size: 4, TTL: time.Minute})
	require.NoError(t, err)
	return NewReader(blobs, cache)
}

// indexedNodes indexes data and converts the nodes the way the importer stores them
func indexedNodes(t *testing.T, data []byte, storagePath string) []*database.ArchiveNode {
	t.Helper()
	result, err := indexer.Index(data, "")
	require.NoError(t, err)
	return steps.ToArchiveNodes("entry-1", storagePath, result.Nodes)
}

func TestReadNode_LengthMatchesDeclaredSize(t *testing.T) {
	data := testutil.Files(t,
		"repo-main/README.md", "# Readme\n\nhello",
		"repo-main/src/index.js", "export const x = 1\n",
		"repo-main/img/logo.png", "\x89PNG\r\n\x1a\nbinary",
	)
	blobs := &countingBlobs{blobs: map[string][]byte{"u/e/archive": data}}
	reader := newReader(t, blobs)

	for _, node := range indexedNodes(t, data, "u/e/archive") {
		if node.IsDir() {
			continue
		}
		content, err := reader.ReadNode(t.Context(), node)
		require.NoError(t, err, node.Path)
		require.NotNil(t, node.SizeBytes)
		assert.Equal(t, *node.SizeBytes, int64(len(content.Data)), node.Path)
	}
	assert.Equal(t, int32(1), blobs.gets.Load(), "archive is downloaded once per reference")
}

func TestReadNode_TextClassification(t *testing.T) {
	data := testutil.Files(t,
		"repo-main/README.md", "# Readme",
		"repo-main/logo.png", "\x89PNG",
	)
	reader := newReader(t, &countingBlobs{blobs: map[string][]byte{"k": data}})

	byPath := map[string]*database.ArchiveNode{}
	for _, n := range indexedNodes(t, data, "k") {
		byPath[n.Path] = n
	}

	md, err := reader.ReadNode(t.Context(), byPath["README.md"])
	require.NoError(t, err)
	assert.True(t, md.IsText)
	assert.Equal(t, "text/markdown", md.ContentType)
	assert.Equal(t, "# Readme", md.Text())

	png, err := reader.ReadNode(t.Context(), byPath["logo.png"])
	require.NoError(t, err)
	assert.False(t, png.IsText)
	assert.Equal(t, indexer.DefaultContentType, png.ContentType)
}

func TestReadNode_NotLocatable(t *testing.T) {
	data := testutil.Files(t, "repo-main/a/b.txt", "b")
	reader := newReader(t, &countingBlobs{blobs: map[string][]byte{"k": data}})
	nodes := indexedNodes(t, data, "k")

	internal := "repo-main/a/b.txt"
	missing := "repo-main/a/zzz.txt"

	tests := []struct {
		name string
		node *database.ArchiveNode
	}{
		{name: "synthesized directory", node: nodes[0]},
		{name: "no internal path", node: &database.ArchiveNode{NodeType: database.NodeTypeFile, StoragePath: nodes[1].StoragePath}},
		{name: "no blob reference", node: &database.ArchiveNode{NodeType: database.NodeTypeFile, InternalPath: &internal}},
		{name: "member missing", node: &database.ArchiveNode{NodeType: database.NodeTypeFile, InternalPath: &missing, StoragePath: nodes[1].StoragePath}},
		{name: "nil", node: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reader.ReadNode(t.Context(), tt.node)
			assert.ErrorIs(t, err, sharedErrors.ErrContentNotLocatable)
		})
	}
}

func TestArchiveCache_DeduplicatesConcurrentLoads(t *testing.T) {
	data := testutil.Files(t, "repo-main/a.txt", "a")
	blobs := &countingBlobs{blobs: map[string][]byte{"k": data}, delay: 50 * time.Millisecond}
	reader := newReader(t, blobs)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = reader.ReadMember(t.Context(), "k", "repo-main/a.txt")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), blobs.gets.Load())
	assert.Equal(t, uint64(1), reader.cache.Stats().Loads)
}

func TestArchiveCache_ExpiryAndInvalidate(t *testing.T) {
	data := testutil.Files(t, "repo-main/a.txt", "a")
	blobs := &countingBlobs{blobs: map[string][]byte{"k": data}}

	cache, err := NewArchiveCache(CacheConfig{Size: 2, TTL: 20 * time.Millisecond})
	require.NoError(t, err)
	reader := NewReader(blobs, cache)

	_, err = reader.ReadMember(t.Context(), "k", "repo-main/a.txt")
	require.NoError(t, err)
	_, err = reader.ReadMember(t.Context(), "k", "repo-main/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(1), blobs.gets.Load())

	time.Sleep(30 * time.Millisecond)
	_, err = reader.ReadMember(t.Context(), "k", "repo-main/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), blobs.gets.Load(), "expired archives are reloaded")

	cache.Invalidate("k")
	_, err = reader.ReadMember(t.Context(), "k", "repo-main/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(3), blobs.gets.Load())

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(3), stats.Misses)
}

func TestArchiveCache_LoadFailure(t *testing.T) {
	reader := newReader(t, &countingBlobs{blobs: map[string][]byte{"bad": []byte("nope")}})

	_, err := reader.ReadMember(t.Context(), "missing", "a")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = reader.ReadMember(t.Context(), "bad", "a")
	assert.ErrorIs(t, err, sharedErrors.ErrArchiveFormat)
}
