package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/javi11/skillvault/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures NewHandler. Zero fields take the defaults of the
// import activity log.
type Config struct {
	LogPath    string       // default imports.log
	Level      slog.Leveler // default LOG_LEVEL, else info
	MaxSize    int          // MB per file, default 5
	MaxAge     int          // days, default 14
	MaxBackups int          // default 5
}

func (c Config) withDefaults() Config {
	if c.LogPath == "" {
		c.LogPath = "imports.log"
	}
	if c.Level == nil {
		c.Level = slog.LevelInfo
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			c.Level = ParseLevel(v)
		}
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 14
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	return c
}

// ParseLevel maps debug, warn and error to their slog levels; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogRotation configures slog with log rotation using lumberjack.
// If logConfig.File is empty it logs to console only, otherwise to both
// console and the rotating file. The returned leveler changes the level of
// the returned logger in place.
func SetupLogRotation(logConfig config.LogConfig) (*slog.Logger, *DynamicLeveler) {
	var writer io.Writer = os.Stdout

	if logConfig.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   logConfig.File,
			MaxSize:    logConfig.MaxSize,    // MB
			MaxBackups: logConfig.MaxBackups, // number of old files
			MaxAge:     logConfig.MaxAge,     // days
			Compress:   logConfig.Compress,   // compress old files
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	}

	leveler := NewDynamicLeveler(ParseLevel(logConfig.Level))

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: leveler,
	})

	return slog.New(WrapHandler(handler)), leveler
}
