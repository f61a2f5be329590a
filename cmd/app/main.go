package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/app"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/connectivity"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg)

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. State Publisher (pending-count polling, cool-down reverts)
	bootstrap.Publisher.Start(ctx)
	defer bootstrap.Publisher.Stop()

	// 5. Sync Orchestrator (single-flight trigger loop)
	orch := bootstrap.Orchestrator
	go orch.Run(ctx)
	slog.InfoContext(ctx, "✅ Sync orchestrator started")

	// 6. Connectivity stack: websocket link watcher + HTTP reachability probe.
	// The monitor fires one sync trigger per offline -> online transition.
	var link connectivity.LinkWatcher
	if cfg.Connectivity.WSURL != "" {
		link = connectivity.NewWSLinkWatcher(cfg.Connectivity.WSURL)
		slog.InfoContext(ctx, "✅ Link watcher configured", slog.String("url", cfg.Connectivity.WSURL))
	}

	prober := connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL)
	monitor := connectivity.NewMonitor(
		link,
		prober,
		time.Duration(cfg.Connectivity.ProbeIntervalSec)*time.Second,
		cfg.Sync.AutoSync,
		orch.TriggerSync,
	)
	monitor.Start(ctx)
	defer monitor.Stop()
	slog.InfoContext(ctx, "✅ Connectivity monitor started",
		slog.Bool("auto_sync", cfg.Sync.AutoSync))

	// 7. Kick off an initial pass so a fresh install populates the cache.
	orch.TriggerSync()

	slog.InfoContext(ctx, "✨ Vestpod sync engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
