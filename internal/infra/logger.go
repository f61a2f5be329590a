package infra

import (
	"log/slog"
	"os"
	"strings"
)

// DefaultUserAgent identifies this client to the backend.
const DefaultUserAgent = "vestpod-sync/1.0 (+https://github.com/anthony-okoye/vestpod-mobile-sub000)"

// NewLogger builds the application logger from config.
// Level defaults to info when unset or unknown.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
