package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/api"
	"github.com/javi11/skillvault/internal/config"
	"github.com/javi11/skillvault/internal/relay"
	"github.com/javi11/skillvault/internal/slogutil"
	"github.com/javi11/skillvault/internal/toolapi"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the skillvault HTTP server",
		Long:  `Start the UI API, the tool API and the fetch relay using configuration from YAML file.`,
		RunE:  runServe,
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, leveler, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	logger := slog.Default()

	logger.Info("Starting skillvault server with log rotation configured",
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level,
		"max_size_mb", cfg.Log.MaxSize,
		"max_age_days", cfg.Log.MaxAge,
		"max_backups", cfg.Log.MaxBackups,
		"compress", cfg.Log.Compress)

	if err := cfg.ValidatePaths(afero.NewOsFs()); err != nil {
		logger.Error("configured paths are not usable", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create config manager for dynamic configuration updates
	configManager := config.NewManager(cfg, configFile)

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	app, debugMode := createFiberApp(cfg, logger)

	// Log level changes apply without a restart
	configManager.OnConfigChange(func(oldConfig, newConfig *config.Config) {
		if oldConfig.Log.Level != newConfig.Log.Level {
			leveler.SetLevel(slogutil.ParseLevel(newConfig.Log.Level))
			*debugMode = newConfig.Log.Level == "debug"
			logger.Info("Log level updated dynamically",
				"old_level", oldConfig.Log.Level,
				"new_level", newConfig.Log.Level)
		}
	})

	relay.NewServer(relay.ServerConfig{
		UpstreamURL:      cfg.Search.UpstreamURL,
		APIKey:           cfg.Search.APIKey,
		GitHubToken:      cfg.Search.GitHubToken,
		MaxDownloadBytes: cfg.Relay.MaxDownloadBytes,
	}).RegisterRoutes(app.Group(cfg.API.RelayPrefix))

	api.NewServer(
		api.Config{
			APIKey:        cfg.API.Key,
			DefaultUserID: cfg.GetDefaultUserID(),
		},
		c.search,
		c.discovery,
		c.importer,
		c.db.Catalog,
		c.reader,
		c.broadcaster,
	).RegisterRoutes(app.Group(cfg.API.Prefix))

	toolapi.NewServer(
		toolapi.Config{
			MaxAttachmentBytes: int64(cfg.GetMaxAttachmentBytes()),
			MaxFiles:           cfg.GetMaxFiles(),
		},
		c.db.Connections,
		c.db.Catalog,
		c.db.Categories,
		c.reader,
	).RegisterRoutes(app.Group(cfg.API.ToolPrefix))

	app.Get("/live", handleFiberHealth)

	// Reload the config file on SIGHUP
	go watchReload(ctx, configManager, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting skillvault server",
			"addr", cfg.ListenAddr(),
			"api_prefix", cfg.API.Prefix,
			"tool_prefix", cfg.API.ToolPrefix,
			"relay_prefix", cfg.API.RelayPrefix,
			"storage_backend", cfg.Storage.Backend,
			"database_driver", cfg.Database.Driver)
		serverErr <- app.Listen(cfg.ListenAddr())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "err", err)
			return err
		}
	case <-sigChan:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", "err", err)
	}

	logger.Info("skillvault server shutting down gracefully")
	return nil
}

func watchReload(ctx context.Context, manager *config.Manager, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := manager.ReloadConfig(); err != nil {
				logger.Error("Failed to reload configuration", "err", err)
				continue
			}
			logger.Info("Configuration reloaded")
		}
	}
}
