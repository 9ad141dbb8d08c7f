// Package slogger provides a shared LOG_LEVEL-aware slog initialization helper.
//
// Call Init() at process start to configure the global slog logger from the
// SCANHUB_LOG_LEVEL environment variable. Legacy log.Print* calls are bridged
// through slog via slog.SetDefault (Go 1.22+).
//
// Valid levels: "debug", "info", "warn", "error". Default: "info".
package slogger

import (
	"log/slog"
	"os"
	"strings"
)

// level holds the dynamic log level so it can be queried at runtime.
var level *slog.LevelVar

// Init reads SCANHUB_LOG_LEVEL, configures a global slog TextHandler on
// stderr, and sets it as the default logger.
func Init() {
	level = &slog.LevelVar{}
	level.Set(parseLevel(os.Getenv("SCANHUB_LOG_LEVEL")))

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// Level returns the current slog.Level.
func Level() slog.Level {
	if level == nil {
		return slog.LevelInfo
	}
	return level.Level()
}

// IsDebug returns true when the current log level is debug or lower.
func IsDebug() bool {
	return Level() <= slog.LevelDebug
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
