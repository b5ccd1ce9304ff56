package slogutil

import (
	"context"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
)

// Handler passes records to an inner handler after adding the attributes
// stored on the record's context with With or WithAttrs.
type Handler struct {
	handler slog.Handler
}

// NewHandler returns a JSON handler writing to a rotating file at cfg.LogPath.
// It backs the import activity log, which is kept apart from console output.
func NewHandler(cfg Config) Handler {
	cfg = cfg.withDefaults()

	base := slog.NewJSONHandler(&lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
	}, &slog.HandlerOptions{Level: cfg.Level})

	return WrapHandler(base)
}

// WrapHandler adds context attributes to h. A nil h logs JSON to stdout.
func WrapHandler(h slog.Handler) Handler {
	if h == nil {
		h = slog.NewJSONHandler(os.Stdout, nil)
	}
	return Handler{handler: h}
}

func (h Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if attrs := Attrs(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{handler: h.handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{handler: h.handler.WithGroup(name)}
}
