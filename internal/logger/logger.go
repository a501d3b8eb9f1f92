package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// L is the global logger instance. It defaults to an info-level JSON logger
// so packages can log before Init runs (and so tests need no setup).
var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

type contextKey string

const loggerKey contextKey = "logger"

// Init configures the global logger. Call once at application startup,
// after loading config.
func Init(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		slog.Warn("invalid LOG_LEVEL, defaulting to INFO", "configuredLevel", logLevel)
	}

	L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(L)
	L.Info("logger initialized", "level", level.String())
}

// ToContext embeds a logger into a context, e.g. one carrying a request id.
func ToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the contextual logger, or the global one if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return L
}
