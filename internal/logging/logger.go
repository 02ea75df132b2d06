// Package logging configures the process-wide slog logger and derives
// request-scoped loggers for the sonification API. Handlers and the job
// pipeline pull a logger from the request context so every entry for one
// request, including the job it spawned, carries the same request_id.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup installs the global slog handler.
//
// Level is one of "debug", "info", "warn", "error" (default: "info").
// Format is "text" or "json" (default: "text"); json is meant for
// production log shippers, text for reading a dev server's output.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger enriched with the chi request ID
// when the context carries one. Use it in handlers so import previews,
// job starts, and errors for the same request correlate in the logs:
//
//	logging.FromContext(r.Context()).Info("sonification started", "job_id", jobID)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a request-scoped logger carrying extra fields, for
// multi-step work that should keep consistent context:
//
//	jobLog := logging.WithFields(ctx, "job_id", jobID, "file", fileName)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
