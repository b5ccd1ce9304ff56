package config

import (
	"fmt"
	"time"
)

// Accessor methods with default fallbacks.
// These provide safe access to values that may be zero when a config
// struct is built by hand instead of through LoadConfig.

// ListenAddr returns host:port for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetBatchSize returns the node insert chunk size with a default fallback.
func (c *Config) GetBatchSize() int {
	if c.Import.BatchSize <= 0 {
		return 500 // Default: 500 nodes per chunk
	}
	return c.Import.BatchSize
}

// GetProgressEvery returns how many inserted nodes separate progress reports.
func (c *Config) GetProgressEvery() int {
	if c.Import.ProgressEvery <= 0 {
		return 100
	}
	return c.Import.ProgressEvery
}

// GetRelayTimeout returns the per-request fetch timeout with a default fallback.
func (c *Config) GetRelayTimeout() time.Duration {
	if c.Relay.Timeout <= 0 {
		return 30 * time.Second // Default: 30 seconds
	}
	return c.Relay.Timeout
}

// GetRetryAttempts returns the number of fetch attempts, at least 1.
func (c *Config) GetRetryAttempts() uint {
	if c.Relay.RetryAttempts <= 0 {
		return 1
	}
	return uint(c.Relay.RetryAttempts)
}

// GetCacheSize returns the archive cache capacity with a default fallback.
func (c *Config) GetCacheSize() int {
	if c.Retrieval.CacheSize <= 0 {
		return 16
	}
	return c.Retrieval.CacheSize
}

// GetCacheTTL returns how long a cached archive stays valid.
func (c *Config) GetCacheTTL() time.Duration {
	if c.Retrieval.CacheTTL <= 0 {
		return 10 * time.Minute
	}
	return c.Retrieval.CacheTTL
}

// GetMaxAttachmentBytes returns the inline attachment limit with a default fallback.
func (c *Config) GetMaxAttachmentBytes() int {
	if c.Retrieval.MaxAttachmentBytes <= 0 {
		return 512000
	}
	return c.Retrieval.MaxAttachmentBytes
}

// GetMaxFiles returns the per-skill file listing limit with a default fallback.
func (c *Config) GetMaxFiles() int {
	if c.Retrieval.MaxFiles <= 0 {
		return 2000
	}
	return c.Retrieval.MaxFiles
}

// GetDefaultUserID returns the owner used when an import names none.
func (c *Config) GetDefaultUserID() string {
	if c.Import.DefaultUserID == "" {
		return "local"
	}
	return c.Import.DefaultUserID
}
