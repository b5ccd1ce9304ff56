package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "port out of range",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			wantErr:     true,
			errContains: "server port",
		},
		{
			name:        "unknown driver",
			mutate:      func(c *Config) { c.Database.Driver = "mysql" },
			wantErr:     true,
			errContains: "database driver",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = ""
			},
			wantErr:     true,
			errContains: "dsn",
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = "postgres://localhost/skillvault"
			},
			wantErr: false,
		},
		{
			name:        "s3 without bucket",
			mutate:      func(c *Config) { c.Storage.Backend = StorageBackendS3 },
			wantErr:     true,
			errContains: "bucket",
		},
		{
			name:        "unknown storage backend",
			mutate:      func(c *Config) { c.Storage.Backend = "ftp" },
			wantErr:     true,
			errContains: "storage backend",
		},
		{
			name:        "zero batch size",
			mutate:      func(c *Config) { c.Import.BatchSize = 0 },
			wantErr:     true,
			errContains: "batch_size",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "verbose" },
			wantErr:     true,
			errContains: "log.level",
		},
		{
			name:        "empty relay",
			mutate:      func(c *Config) { c.Relay.BaseURL = "" },
			wantErr:     true,
			errContains: "relay base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
import:
  batch_size: 250
retrieval:
  cache_ttl: 2m
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Import.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Retrieval.CacheTTL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"node_modules/", ".git/"}, cfg.Import.ExcludedPaths)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveToFile_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Search.UpstreamURL = "https://search.example.com/api"

	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://search.example.com/api", loaded.Search.UpstreamURL)
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig(), "")

	var gotOld, gotNew *Config
	m.OnConfigChange(func(oldConfig, newConfig *Config) {
		gotOld, gotNew = oldConfig, newConfig
	})

	next := DefaultConfig()
	next.Log.Level = "debug"
	require.NoError(t, m.UpdateConfig(next))

	require.NotNil(t, gotOld)
	assert.Equal(t, "info", gotOld.Log.Level)
	assert.Equal(t, "debug", gotNew.Log.Level)
	assert.Equal(t, "debug", m.GetConfig().Log.Level)

	restart := DefaultConfig()
	restart.Database.Path = "other.db"
	err := m.UpdateConfig(restart)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart")
	assert.Equal(t, "skillvault.db", m.GetConfig().Database.Path)
}

func TestAccessors_Fallbacks(t *testing.T) {
	var cfg Config

	assert.Equal(t, 500, cfg.GetBatchSize())
	assert.Equal(t, 100, cfg.GetProgressEvery())
	assert.Equal(t, 30*time.Second, cfg.GetRelayTimeout())
	assert.Equal(t, uint(1), cfg.GetRetryAttempts())
	assert.Equal(t, 512000, cfg.GetMaxAttachmentBytes())
	assert.Equal(t, 2000, cfg.GetMaxFiles())
	assert.Equal(t, "local", cfg.GetDefaultUserID())

	def := DefaultConfig()
	assert.Equal(t, "0.0.0.0:8080", def.ListenAddr())
	assert.Equal(t, uint(3), def.GetRetryAttempts())
}

func TestConfig_ValidatePaths(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg := DefaultConfig()
	cfg.Storage.RootPath = "/srv/skillvault/blobs"
	cfg.Database.Path = "/srv/skillvault/catalog.db"
	cfg.Log.File = "/var/log/skillvault/skillvault.log"
	require.NoError(t, cfg.ValidatePaths(fs))

	for _, dir := range []string{"/srv/skillvault/blobs", "/srv/skillvault", "/var/log/skillvault"} {
		exists, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}

	cfg.Storage.Backend = StorageBackendS3
	cfg.Database.Driver = DriverPostgres
	cfg.Log.File = ""
	assert.NoError(t, cfg.ValidatePaths(afero.NewReadOnlyFs(afero.NewMemMapFs())), "nothing local to check")

	cfg = DefaultConfig()
	cfg.Storage.RootPath = "/blobs"
	assert.ErrorContains(t, cfg.ValidatePaths(afero.NewReadOnlyFs(afero.NewMemMapFs())), "storage root_path")
}
