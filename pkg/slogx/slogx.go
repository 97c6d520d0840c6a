// Package slogx configures the process logger and threads request-scoped
// loggers through context.
package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler for the process logger. Level and Format carry
// the raw LOG_LEVEL / LOG_FORMAT values; anything unrecognized falls back to
// info and json.
type Config struct {
	Service string
	Version string
	Env     string
	Level   string
	Format  string

	// Writer defaults to stdout. Tests inject a buffer here.
	Writer io.Writer
}

// New builds the process logger, stamps every record with the service
// identity and installs it as the slog default.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		// Source locations are only worth the noise during development.
		AddSource: cfg.Env == "dev",
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)

	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
