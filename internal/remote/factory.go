package remote

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
)

// Mode selects the backend implementation.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// NewFromConfig returns the API implementation selected by config.
func NewFromConfig(cfg *infra.Config) (API, error) {
	mode := Mode(strings.ToLower(cfg.Sync.Mode))

	slog.Info("Initializing remote backend", "mode", mode)

	switch mode {
	case ModeLive:
		timeout := time.Duration(cfg.API.TimeoutSec) * time.Second
		return NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, timeout), nil

	case ModeMock:
		slog.Info("🔒 Using in-memory mock backend (no network calls)")
		return NewMock(), nil

	default:
		return nil, fmt.Errorf("unknown sync mode: %s", cfg.Sync.Mode)
	}
}
