package retrieval

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/singleflight"

	"github.com/javi11/skillvault/internal/indexer"
)

// LoadFunc fetches the raw archive for a blob reference
type LoadFunc func(ctx context.Context, storagePath string) ([]byte, error)

// CacheConfig configures an ArchiveCache
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// CacheStats holds cache counters
type CacheStats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Loads  uint64 `json:"loads"`
}

// archive is one opened archive with its members indexed by internal path
type archive struct {
	storagePath string
	size        int
	files       map[string]*zip.File
	expiresAt   time.Time
}

// ArchiveCache memoizes opened archives by blob reference. Concurrent misses
// for the same reference share a single load.
type ArchiveCache struct {
	archives *lru.Cache[string, *archive]
	ttl      time.Duration
	group    singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	loads  atomic.Uint64
}

// NewArchiveCache creates a new archive cache
func NewArchiveCache(cfg CacheConfig) (*ArchiveCache, error) {
	size := cfg.Size
	if size <= 0 {
		size = 16
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	archives, err := lru.New[string, *archive](size)
	if err != nil {
		return nil, err
	}

	return &ArchiveCache{archives: archives, ttl: ttl}, nil
}

// get returns the opened archive for storagePath, loading it on a miss or after expiry
func (c *ArchiveCache) get(ctx context.Context, storagePath string, load LoadFunc) (*archive, error) {
	if entry, ok := c.archives.Get(storagePath); ok {
		if time.Now().Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry, nil
		}
		c.archives.Remove(storagePath)
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(storagePath, func() (any, error) {
		// Another caller may have finished the load while we waited
		if entry, ok := c.archives.Get(storagePath); ok && time.Now().Before(entry.expiresAt) {
			return entry, nil
		}

		c.loads.Add(1)
		data, err := load(ctx, storagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load archive %s: %w", storagePath, err)
		}

		r, err := indexer.Open(data)
		if err != nil {
			return nil, err
		}

		entry := &archive{
			storagePath: storagePath,
			size:        len(data),
			files:       make(map[string]*zip.File, len(r.File)),
			expiresAt:   time.Now().Add(c.ttl),
		}
		for _, f := range r.File {
			entry.files[f.Name] = f
		}

		c.archives.Add(storagePath, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*archive), nil
}

// Invalidate drops a cached archive
func (c *ArchiveCache) Invalidate(storagePath string) {
	c.archives.Remove(storagePath)
}

// Stats returns cache statistics
func (c *ArchiveCache) Stats() CacheStats {
	return CacheStats{
		Size:   c.archives.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
	}
}
