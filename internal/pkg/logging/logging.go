package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup initialises the global slog default logger with a service attribute.
// level may be "debug", "info", "warn", or "error" (default "info").
// format may be "json" or "text" (default "text").
func Setup(service, level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", service))
}
