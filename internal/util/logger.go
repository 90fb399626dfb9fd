package util

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

// NewConsoleLogger builds the human-readable slog logger used for the run
// summary lines, at the same level as the structured zap logger.
func NewConsoleLogger(logger *zap.Logger) *slog.Logger {
	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.DateTime,
	}))
}

// ComponentLogger tags the structured logger with the emitting component.
func ComponentLogger(component string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("component", component))
}
