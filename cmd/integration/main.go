package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/engine"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/remote"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/storage"
)

// End-to-end exercise of the sync engine against the in-memory mock
// backend: queued changes drain, canonical state pulls back, a flaky
// backend produces a partial result, and a persistently failing change
// is dropped at the retry ceiling.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting sync engine integration run...")

	tmpDir, err := os.MkdirTemp("", "vestpod-integration-*")
	if err != nil {
		slog.Error("❌ Failed to create temp dir", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	cache, err := storage.NewCacheStore(filepath.Join(tmpDir, "cache.db"))
	if err != nil {
		slog.Error("❌ Failed to open cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	backend := remote.NewMock()
	backend.SetProfile(domain.UserProfile{
		ID:           "user-1",
		Email:        "ada@example.com",
		DisplayName:  "Ada",
		BaseCurrency: "USD",
	})

	orch := engine.NewOrchestrator(cache, backend, nil)
	ctx := context.Background()

	// STEP 1: queue offline edits, then sync.
	slog.Info("STEP 1: Enqueuing offline changes...")
	mustEnqueue(ctx, cache, domain.ChangeCreatePortfolio, domain.Portfolio{
		ID: "pf-local-1", Name: "Growth", Currency: "USD",
	})
	mustEnqueue(ctx, cache, domain.ChangeCreateAsset, domain.Asset{
		ID:            "as-local-1",
		PortfolioID:   "pf-local-1",
		Symbol:        "VTI",
		Name:          "Total Market ETF",
		Quantity:      decimal.NewFromInt(10),
		PurchasePrice: decimal.NewFromFloat(220.50),
	})
	mustEnqueue(ctx, cache, domain.ChangeUpdateProfile, domain.UserProfile{
		ID: "user-1", Email: "ada@example.com", DisplayName: "Ada L.", BaseCurrency: "EUR",
	})

	result, ran := orch.FullSync(ctx)
	if !ran {
		slog.Error("❌ Sync unexpectedly dropped")
		os.Exit(1)
	}
	report("STEP 1", result)
	if result.Status != domain.SyncSuccess || result.SyncedChanges != 3 {
		slog.Error("❌ Expected a clean 3-change sync")
		os.Exit(1)
	}
	if n := orch.PendingChangesCount(ctx); n != 0 {
		slog.Error("❌ Queue not drained", "pending", n)
		os.Exit(1)
	}

	// STEP 2: flaky asset pull, everything else fine.
	slog.Info("STEP 2: Simulating a failing asset pull...")
	backend.FailWith = func(op string) error {
		if op == "ListAssets" {
			return fmt.Errorf("simulated 503")
		}
		return nil
	}

	result, _ = orch.FullSync(ctx)
	report("STEP 2", result)
	if result.Status != domain.SyncPartial {
		slog.Error("❌ Expected partial status when one pull fails")
		os.Exit(1)
	}
	backend.FailWith = nil

	// STEP 3: a change that never lands is dropped after the ceiling.
	slog.Info("STEP 3: Driving a change to the retry ceiling...")
	backend.FailWith = func(op string) error {
		if op == "UpdateProfile" {
			return fmt.Errorf("simulated 500")
		}
		return nil
	}
	mustEnqueue(ctx, cache, domain.ChangeUpdateProfile, domain.UserProfile{
		ID: "user-1", DisplayName: "never lands",
	})

	var last domain.SyncResult
	for i := 0; i < domain.MaxRetryAttempts; i++ {
		last, _ = orch.FullSync(ctx)
	}
	report("STEP 3", last)
	if n := orch.PendingChangesCount(ctx); n != 0 {
		slog.Error("❌ Exhausted change still queued", "pending", n)
		os.Exit(1)
	}
	exhausted := false
	for _, e := range last.Errors {
		if e.Type == domain.ErrTypeCeiling {
			exhausted = true
		}
	}
	if !exhausted {
		slog.Error("❌ Expected a RETRY_EXHAUSTED error on the final pass")
		os.Exit(1)
	}

	slog.Info("🎉 Integration run passed!")
}

func mustEnqueue(ctx context.Context, cache *storage.CacheStore, t domain.ChangeType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("❌ Failed to marshal payload", "error", err)
		os.Exit(1)
	}
	if _, err := cache.Enqueue(ctx, t, data); err != nil {
		slog.Error("❌ Failed to enqueue change", "type", string(t), "error", err)
		os.Exit(1)
	}
}

func report(step string, r domain.SyncResult) {
	slog.Info("✅ "+step+" completed",
		"status", string(r.Status),
		"synced", r.SyncedChanges,
		"failed", r.FailedChanges,
		"errors", len(r.Errors))
}
