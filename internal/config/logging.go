package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger logs text to stderr at level and JSON to logFile at level or
// INFO, whichever is lower, so quiet CLI runs still leave a job trail in the
// file. An empty logFile logs to stderr only. The returned cleanup closes the
// file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	if logFile == "" {
		return slog.New(textHandler(os.Stderr, level)), noop
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
		if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return SetupLoggerWithWriters(os.Stderr, file, level), file.Close
		}
	}

	logger := slog.New(textHandler(os.Stderr, level))
	logger.Warn("log file unavailable, logging to stderr only", "file", logFile)
	return logger, noop
}

// SetupLoggerWithWriters is SetupLogger over arbitrary writers.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: min(level, slog.LevelInfo)})
	return slog.New(slogmulti.Fanout(textHandler(stderr, level), fileHandler))
}

func textHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
