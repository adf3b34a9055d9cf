package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultServerURL = "http://127.0.0.1:5000"
	DefaultFormat    = "json"
)

// Cfg is the runtime configuration resolved from .env and the environment.
// Command-line flags override these values.
type Cfg struct {
	// ServerURL is the review server base URL (VERIFIER_URL).
	ServerURL string
	// Dir holds view_state.json and journal.sqlite (VERIFIER_DIR, default ~/.verifier).
	Dir string
	// Format is the CLI output format: json|edn|table (VERIFIER_FORMAT).
	Format string
	// Timeout bounds each HTTP request; zero means none (VERIFIER_TIMEOUT, Go duration).
	Timeout time.Duration

	LogFile  string // VERIFIER_LOG
	LogLevel string // VERIFIER_LOG_LEVEL: debug|info|warn|error
}

// Load reads .env (if present) then environment variables.
func Load() (*Cfg, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	cfg := &Cfg{
		ServerURL: strings.TrimRight(envOr("VERIFIER_URL", DefaultServerURL), "/"),
		Format:    envOr("VERIFIER_FORMAT", DefaultFormat),
		LogFile:   envOr("VERIFIER_LOG", ""),
		LogLevel:  envOr("VERIFIER_LOG_LEVEL", "info"),
	}

	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir

	if raw := envOr("VERIFIER_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("VERIFIER_TIMEOUT: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("VERIFIER_TIMEOUT: must not be negative")
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// DefaultDir returns VERIFIER_DIR or ~/.verifier.
func DefaultDir() (string, error) {
	if v := envOr("VERIFIER_DIR", ""); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".verifier"), nil
}

// FallbackDir is DefaultDir, or ./.verifier when no home directory is known.
func FallbackDir() string {
	d, err := DefaultDir()
	if err != nil {
		return ".verifier"
	}
	return d
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
