package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup installs the default slog logger.
//
// The TUI owns the terminal, so logs only go to a file. With no path configured,
// records are discarded. The returned close func releases the file.
func Setup(path, level string) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	path = strings.TrimSpace(path)
	if path == "" {
		l := slog.New(slog.NewTextHandler(io.Discard, opts))
		slog.SetDefault(l)
		return l, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	l := slog.New(slog.NewTextHandler(f, opts))
	slog.SetDefault(l)
	return l, f.Close, nil
}

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
