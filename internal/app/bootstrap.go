package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/engine"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/remote"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config       *infra.Config
	Cache        *storage.CacheStore
	API          remote.API
	Publisher    *engine.StatePublisher
	Orchestrator *engine.Orchestrator

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, dirs, DB, API client).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Vestpod Sync Engine...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Workspace layout: _workspace/data/{mode}/cache.db
	mode := strings.ToLower(cfg.Sync.Mode)

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// 3.1 Singleton Instance Lock
	// Two daemons sharing one cache DB would corrupt the write queue.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Local cache (single-writer WAL DB)
	dbPath := filepath.Join(dataDir, "cache.db")
	cache, err := storage.NewCacheStore(dbPath)
	if err != nil {
		return err
	}
	b.Cache = cache
	slog.Info("✅ Cache store initialized (WAL-mode)", "path", dbPath, "mode", mode)

	// 5. Remote API client (live HTTP or in-memory mock)
	api, err := remote.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	b.API = api
	slog.Info("✅ Remote API client ready", "mode", mode)

	// 6. Sync engine
	b.Publisher = engine.NewStatePublisher(
		cache,
		time.Duration(cfg.Sync.PendingPollIntervalSec)*time.Second,
		time.Duration(cfg.Sync.SuccessCooldownSec)*time.Second,
	)
	b.Orchestrator = engine.NewOrchestrator(cache, api, b.Publisher)
	slog.Info("✅ Sync orchestrator ready")

	return nil
}

// Shutdown releases resources acquired during Initialize, in reverse order.
func (b *Bootstrap) Shutdown() {
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			slog.Error("Failed to close cache store", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
