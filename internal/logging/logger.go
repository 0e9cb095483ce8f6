// Package logging provides structured logging configuration using log/slog.
//
// Records go to stdout (or Options.Output) and, when a file is configured,
// to a size-rotated log file as well. Request IDs from chi's RequestID
// middleware and sync run IDs stored with WithRunID are attached
// automatically by FromContext.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how log records are written.
type Options struct {
	Level  string // debug, info, warn, error (default: info)
	Format string // text or json (default: text)

	// Output receives every record (default: os.Stdout).
	Output io.Writer

	// File enables a rotated copy of the log. Empty disables it.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures the global slog logger.
//
// The returned closer flushes and closes the log file, if any; it is
// always non-nil and safe to call from main on shutdown. When the log
// directory cannot be created, records go to the console only and a
// warning says so.
func Setup(opts Options) io.Closer {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	var closer io.Closer = nopCloser{}

	var fileErr error
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			fileErr = err
		} else {
			rotator := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				Compress:   true,
			}
			out = io.MultiWriter(out, rotator)
			closer = rotator
		}
	}

	slog.SetDefault(slog.New(newHandler(out, opts.Level, opts.Format)))
	if fileErr != nil {
		slog.Warn("log file disabled, logging to console only", "file", opts.File, "error", fileErr)
	}
	return closer
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

// parseLevel converts a string log level to slog.Level.
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

type runIDKey struct{}

// WithRunID stores a sync run ID in ctx so every logger derived from it
// carries run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run ID stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// FromContext returns a logger enriched with request context.
//
// When ctx carries a chi RequestID the logger includes request_id; when
// it carries a sync run ID it includes run_id.
//
// Usage:
//
//	func handleSync(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("sync requested", "dry_run", dryRun)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if runID := RunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	sheetLogger := logging.WithFields(ctx,
//	    "sheet", sheet,
//	    "table", table,
//	)
//	sheetLogger.Info("table synced", "inserted", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
