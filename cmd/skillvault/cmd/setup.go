package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	fLogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/javi11/skillvault/internal/blobstore"
	"github.com/javi11/skillvault/internal/config"
	"github.com/javi11/skillvault/internal/database"
	"github.com/javi11/skillvault/internal/discovery"
	"github.com/javi11/skillvault/internal/importer"
	"github.com/javi11/skillvault/internal/progress"
	"github.com/javi11/skillvault/internal/relay"
	"github.com/javi11/skillvault/internal/retrieval"
	"github.com/javi11/skillvault/internal/search"
	"github.com/javi11/skillvault/internal/slogutil"
)

// components holds everything a command may need, built from one config
type components struct {
	cfg         *config.Config
	db          *database.DB
	blobs       blobstore.Store
	relayClient *relay.Client
	search      *search.Client
	discovery   *discovery.Service
	broadcaster *progress.ProgressBroadcaster
	importer    *importer.Service
	reader      *retrieval.Reader
}

func (c *components) Close() {
	if c.broadcaster != nil {
		_ = c.broadcaster.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}

// loadConfigAndLogger loads the config file and installs the rotating logger as default
func loadConfigAndLogger() (*config.Config, *slogutil.DynamicLeveler, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return nil, nil, err
	}

	logger, leveler := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)

	return cfg, leveler, nil
}

// initializeDatabase creates and initializes the catalog database
func initializeDatabase(cfg *config.Config, logger *slog.Logger) (*database.DB, error) {
	dbConfig := database.Config{
		Driver:       cfg.Database.Driver,
		DatabasePath: cfg.Database.Path,
		DSN:          cfg.Database.DSN,
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		logger.Error("failed to initialize database", "err", err)
		return nil, err
	}

	return db, nil
}

// initializeComponents wires the catalog, blob store, relay client and services
func initializeComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	db, err := initializeDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.New(ctx, cfg.Storage)
	if err != nil {
		_ = db.Close()
		logger.Error("failed to initialize blob store", "backend", cfg.Storage.Backend, "err", err)
		return nil, err
	}

	relayClient := relay.NewClient(relay.ClientConfig{
		BaseURL:          cfg.Relay.BaseURL,
		Timeout:          cfg.GetRelayTimeout(),
		RetryAttempts:    cfg.GetRetryAttempts(),
		MaxDownloadBytes: cfg.Relay.MaxDownloadBytes,
	})

	cache, err := retrieval.NewArchiveCache(retrieval.CacheConfig{
		Size: cfg.GetCacheSize(),
		TTL:  cfg.GetCacheTTL(),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create archive cache: %w", err)
	}

	broadcaster := progress.NewProgressBroadcaster()

	importService := importer.NewService(
		importer.ServiceConfigFrom(cfg),
		db.Catalog,
		db.Categories,
		blobs,
		relayClient,
		broadcaster,
	)

	return &components{
		cfg:         cfg,
		db:          db,
		blobs:       blobs,
		relayClient: relayClient,
		search:      newSearchClient(cfg),
		discovery:   discovery.New(relayClient),
		broadcaster: broadcaster,
		importer:    importService,
		reader:      retrieval.NewReader(blobs, cache),
	}, nil
}

// createFiberApp creates and configures the Fiber application
func createFiberApp(cfg *config.Config, logger *slog.Logger) (*fiber.App, *bool) {
	app := fiber.New(fiber.Config{
		ReadTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("Fiber error", "path", c.Path(), "method", c.Method(), "error", err)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Conditional Fiber request logging - only in debug mode
	debugMode := cfg.Log.Level == "debug"

	fiberLogger := fLogger.New()
	app.Use(func(c *fiber.Ctx) error {
		if debugMode {
			return fiberLogger(c)
		}
		return c.Next()
	})

	return app, &debugMode
}

// handleFiberHealth is a lightweight liveness check
func handleFiberHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
