package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/javi11/skillvault/internal/pathutil"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Blob storage backends.
const (
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Relay     RelayConfig     `yaml:"relay" mapstructure:"relay"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// APIConfig represents REST API configuration
type APIConfig struct {
	Prefix      string `yaml:"prefix" mapstructure:"prefix"`
	ToolPrefix  string `yaml:"tool_prefix" mapstructure:"tool_prefix"`
	RelayPrefix string `yaml:"relay_prefix" mapstructure:"relay_prefix"`
	// Key protects the UI-facing API when set. Empty disables the check.
	Key string `yaml:"key" mapstructure:"key"`
}

// DatabaseConfig represents catalog database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// StorageConfig represents blob storage configuration
type StorageConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	RootPath string `yaml:"root_path" mapstructure:"root_path"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// RelayConfig represents the fetch relay the importer downloads through
type RelayConfig struct {
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	MaxDownloadBytes int64         `yaml:"max_download_bytes" mapstructure:"max_download_bytes"`
}

// SearchConfig represents search service configuration
type SearchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UpstreamURL string `yaml:"upstream_url" mapstructure:"upstream_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	GitHubToken string `yaml:"github_token" mapstructure:"github_token"`
}

// ImportConfig represents import processing configuration
type ImportConfig struct {
	BatchSize       int      `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressEvery   int      `yaml:"progress_every" mapstructure:"progress_every"`
	ExcludedPaths   []string `yaml:"excluded_paths" mapstructure:"excluded_paths"`
	DefaultCategory string   `yaml:"default_category" mapstructure:"default_category"`
	DefaultLevel    string   `yaml:"default_level" mapstructure:"default_level"`
	DefaultUserID   string   `yaml:"default_user_id" mapstructure:"default_user_id"`
	MaxConcurrent   int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// RetrievalConfig represents random-access retrieval configuration
type RetrievalConfig struct {
	CacheSize          int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL           time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	MaxAttachmentBytes int           `yaml:"max_attachment_bytes" mapstructure:"max_attachment_bytes"`
	MaxFiles           int           `yaml:"max_files" mapstructure:"max_files"`
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// DeepCopy returns a deep copy of the configuration
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copyCfg := *c
	copyCfg.Import.ExcludedPaths = slices.Clone(c.Import.ExcludedPaths)

	return &copyCfg
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn cannot be empty for the postgres driver")
		}
	default:
		return fmt.Errorf("database driver must be one of: %s, %s", DriverSQLite, DriverPostgres)
	}

	switch c.Storage.Backend {
	case StorageBackendFilesystem:
		if c.Storage.RootPath == "" {
			return fmt.Errorf("storage root_path cannot be empty for the filesystem backend")
		}
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket cannot be empty for the s3 backend")
		}
	default:
		return fmt.Errorf("storage backend must be one of: %s, %s", StorageBackendFilesystem, StorageBackendS3)
	}

	if c.Relay.BaseURL == "" {
		return fmt.Errorf("relay base_url cannot be empty")
	}

	if c.Relay.RetryAttempts < 0 {
		return fmt.Errorf("relay retry_attempts must be non-negative")
	}

	if c.Search.BaseURL == "" {
		return fmt.Errorf("search base_url cannot be empty")
	}

	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import batch_size must be greater than 0")
	}

	if c.Import.MaxConcurrent <= 0 {
		return fmt.Errorf("import max_concurrent must be greater than 0")
	}

	if c.Retrieval.CacheSize < 0 {
		return fmt.Errorf("retrieval cache_size must be non-negative")
	}

	if c.Log.Level != "" && !slices.Contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}

	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}

	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// ValidatePaths checks that every local path the service writes to is
// usable: the blob root of the filesystem backend, the sqlite file and the log file.
func (c *Config) ValidatePaths(fs afero.Fs) error {
	if c.Storage.Backend == StorageBackendFilesystem {
		if err := pathutil.CheckDirectoryWritable(fs, c.Storage.RootPath); err != nil {
			return fmt.Errorf("storage root_path: %w", err)
		}
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path != ":memory:" {
		if err := pathutil.CheckFileDirectoryWritable(fs, c.Database.Path, "database"); err != nil {
			return err
		}
	}
	return pathutil.CheckFileDirectoryWritable(fs, c.Log.File, "log")
}

// ChangeCallback represents a function called when configuration changes
type ChangeCallback func(oldConfig, newConfig *Config)

// Manager manages configuration state and persistence
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// UpdateConfig updates the current configuration (thread-safe)
func (m *Manager) UpdateConfig(config *Config) error {
	if err := m.ValidateConfigUpdate(config); err != nil {
		return err
	}

	m.mutex.Lock()
	// Take a deep copy of the old config so callbacks get an immutable snapshot
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	// Notify callbacks after releasing the lock
	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback to be called when configuration changes
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ValidateConfigUpdate validates configuration updates with additional restrictions
func (m *Manager) ValidateConfigUpdate(newConfig *Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	m.mutex.RLock()
	currentConfig := m.current
	m.mutex.RUnlock()

	if currentConfig == nil {
		return nil
	}

	if newConfig.Server.Port != currentConfig.Server.Port {
		return fmt.Errorf("server port cannot be changed at runtime - requires server restart")
	}

	if newConfig.Database != currentConfig.Database {
		return fmt.Errorf("database settings cannot be changed at runtime - requires server restart")
	}

	if newConfig.Storage != currentConfig.Storage {
		return fmt.Errorf("storage settings cannot be changed at runtime - requires server restart")
	}

	return nil
}

// ReloadConfig reloads configuration from file and notifies listeners
func (m *Manager) ReloadConfig() error {
	config, err := LoadConfig(m.configFile)
	if err != nil {
		return err
	}
	return m.UpdateConfig(config)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		API: APIConfig{
			Prefix:      "/api",
			ToolPrefix:  "/mcp",
			RelayPrefix: "/relay",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "skillvault.db",
		},
		Storage: StorageConfig{
			Backend:  StorageBackendFilesystem,
			RootPath: "./blobs",
		},
		Relay: RelayConfig{
			BaseURL:          "http://localhost:8080/relay",
			Timeout:          30 * time.Second,
			RetryAttempts:    3,
			MaxDownloadBytes: 200 << 20, // 200MB
		},
		Search: SearchConfig{
			BaseURL:     "http://localhost:8080/relay",
			UpstreamURL: "https://skillsmp.com/api/v1",
		},
		Import: ImportConfig{
			BatchSize:       500,
			ProgressEvery:   100,
			ExcludedPaths:   []string{"node_modules/", ".git/"},
			DefaultCategory: "Imported",
			DefaultLevel:    "Intermediate",
			DefaultUserID:   "local",
			MaxConcurrent:   2,
		},
		Retrieval: RetrievalConfig{
			CacheSize:          16,
			CacheTTL:           10 * time.Minute,
			MaxAttachmentBytes: 512000,
			MaxFiles:           2000,
		},
		Log: LogConfig{
			File:       "",     // Empty = console only
			Level:      "info", // Default log level
			MaxSize:    100,    // 100MB max size
			MaxAge:     30,     // Keep for 30 days
			MaxBackups: 10,     // Keep 10 old files
			Compress:   true,   // Compress old files
		},
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults.
// A missing file is not an error when no explicit path was given: defaults apply.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("SKILLVAULT")
	v.AutomaticEnv()
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configFile == "" && errors.As(err, &notFound):
			// defaults only
		case configFile != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file %s does not exist: %w", configFile, err)
		default:
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Secrets are commonly injected through the environment rather than the YAML file.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("search.api_key", "SKILLVAULT_SEARCH_API_KEY", "SKILLSMP_API_KEY")
	_ = v.BindEnv("search.github_token", "SKILLVAULT_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("database.dsn", "SKILLVAULT_DATABASE_DSN")
	_ = v.BindEnv("api.key", "SKILLVAULT_API_KEY")
}
