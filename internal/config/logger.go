package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a JSON slog.Logger. When a log file is configured,
// output goes to both stdout and a size-rotated file.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var writer io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err == nil {
			fileLogger := &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    10, // Megabytes
				MaxBackups: 3,
				MaxAge:     28, // Days
				Compress:   true,
			}
			writer = io.MultiWriter(os.Stdout, fileLogger)
		}
	}

	return slog.New(slog.NewJSONHandler(writer, opts))
}
