package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/remote"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/storage"
)

// Orchestrator runs the two-phase sync state machine: drain the change
// queue against the remote backend, then pull canonical collections back
// into the local cache. Exactly one sync runs at a time; triggers that
// arrive while one is in flight are dropped, and the in-flight result is
// authoritative for that window.
type Orchestrator struct {
	store *storage.CacheStore
	api   remote.API
	pub   *StatePublisher // optional

	inFlight atomic.Bool
	triggers chan struct{} // capacity-1 task slot
	wg       sync.WaitGroup
}

// NewOrchestrator wires the orchestrator. pub may be nil (headless use).
func NewOrchestrator(store *storage.CacheStore, api remote.API, pub *StatePublisher) *Orchestrator {
	return &Orchestrator{
		store:    store,
		api:      api,
		pub:      pub,
		triggers: make(chan struct{}, 1),
	}
}

// TriggerSync requests a sync, fire-and-forget. If the slot is already
// occupied the request is coalesced into the pending one.
func (o *Orchestrator) TriggerSync() {
	select {
	case o.triggers <- struct{}{}:
	default:
	}
}

// Run consumes the trigger slot until ctx is cancelled.
// This MUST be run in a single goroutine.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("Sync orchestrator started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sync orchestrator stopping...")
			return
		case <-o.triggers:
			o.FullSync(ctx)
		}
	}
}

// FullSync executes one drain+pull pass. The second return is false when
// the call was dropped because a sync was already in flight; the zero
// result carries no meaning in that case. Nothing escapes as a panic:
// unexpected failures are converted into a synthetic SyncError so callers
// always receive a well-formed result.
func (o *Orchestrator) FullSync(ctx context.Context) (domain.SyncResult, bool) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return domain.SyncResult{}, false
	}
	defer o.inFlight.Store(false)

	return o.runSync(ctx), true
}

func (o *Orchestrator) runSync(ctx context.Context) (result domain.SyncResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("SYNC_PANIC_RECOVERED", slog.Any("panic", r))
			result.Errors = append(result.Errors, domain.SyncError{
				ChangeID: "sync:panic",
				Type:     domain.ErrTypePanic,
				Message:  fmt.Sprintf("%v", r),
			})
			if result.SyncedChanges > 0 {
				result.Status = domain.SyncPartial
			} else {
				result.Status = domain.SyncFailed
			}
			o.pub.FinishSync(result)
		}
	}()

	o.pub.BeginSync()

	synced, failed, drainErrs := o.drain(ctx)
	result.SyncedChanges = synced
	result.FailedChanges = failed
	result.Errors = append(result.Errors, drainErrs...)

	o.pub.SetProgress(ProgressDrained)
	o.pub.RefreshPending(ctx)

	pullsOK, pullsFailed, pullErrs := o.pull(ctx)
	result.Errors = append(result.Errors, pullErrs...)

	o.pub.SetProgress(ProgressPulled)

	result.Status = domain.DeriveStatus(synced, failed, pullsOK, pullsFailed)

	slog.Info("Sync pass completed",
		slog.String("status", string(result.Status)),
		slog.Int("synced", result.SyncedChanges),
		slog.Int("failed", result.FailedChanges),
		slog.Int("pull_failures", pullsFailed),
		slog.Duration("elapsed", time.Since(start)))

	o.pub.FinishSync(result)
	return result
}

// drain replays every queued change in FIFO order. Entries already at the
// retry ceiling are classified failed without another attempt; entries
// that reach the ceiling during this pass get a SyncError. All entries
// at or over the ceiling are purged at the end of the pass.
func (o *Orchestrator) drain(ctx context.Context) (synced, failed int, errs []domain.SyncError) {
	queue, err := o.store.GetQueue(ctx)
	if err != nil {
		// Storage failure is degraded-but-continuing: nothing to drain.
		slog.Error("Failed to read change queue", slog.Any("error", err))
		return 0, 0, nil
	}

	if len(queue) == 0 {
		return 0, 0, nil
	}

	o.pub.SetProgress(ProgressQueueLoaded)
	slog.Info("Draining change queue", slog.Int("pending", len(queue)))

	for _, change := range queue {
		if change.RetryCount >= domain.MaxRetryAttempts {
			// Exhausted before this pass began; report, don't replay.
			failed++
			errs = append(errs, domain.SyncError{
				ChangeID:   change.ID,
				Type:       domain.ErrTypeCeiling,
				Message:    "retry ceiling reached, change dropped",
				RetryCount: change.RetryCount,
			})
			continue
		}

		if err := o.replay(ctx, change); err != nil {
			failed++
			newCount, rerr := o.store.IncrementRetry(ctx, change.ID)
			if rerr != nil {
				slog.Error("Failed to increment retry count",
					slog.String("change", change.ID), slog.Any("error", rerr))
				continue
			}

			slog.Warn("Change replay failed",
				slog.String("change", change.ID),
				slog.String("type", string(change.Type)),
				slog.Int("retry_count", newCount),
				slog.Any("error", err))

			if newCount >= domain.MaxRetryAttempts {
				errs = append(errs, domain.SyncError{
					ChangeID:   change.ID,
					Type:       domain.ErrTypeCeiling,
					Message:    err.Error(),
					RetryCount: newCount,
				})
			}
			continue
		}

		if err := o.store.RemoveFromQueue(ctx, change.ID); err != nil {
			// The remote call landed; a dequeue failure means this change
			// may replay again. Creates carry an idempotency key for
			// exactly this window.
			slog.Error("Failed to dequeue synced change",
				slog.String("change", change.ID), slog.Any("error", err))
		}
		synced++
	}

	o.purgeExhausted(ctx)

	return synced, failed, errs
}

// purgeExhausted removes every entry at or over the retry ceiling,
// covering both just-failed entries and previously exhausted ones.
func (o *Orchestrator) purgeExhausted(ctx context.Context) {
	queue, err := o.store.GetQueue(ctx)
	if err != nil {
		slog.Error("Failed to re-read queue for purge", slog.Any("error", err))
		return
	}

	for _, change := range queue {
		if change.RetryCount >= domain.MaxRetryAttempts {
			if err := o.store.RemoveFromQueue(ctx, change.ID); err != nil {
				slog.Error("Failed to purge exhausted change",
					slog.String("change", change.ID), slog.Any("error", err))
			} else {
				slog.Warn("Dropped change after retry ceiling",
					slog.String("change", change.ID),
					slog.String("type", string(change.Type)))
			}
		}
	}
}

// replay performs the remote call appropriate to the change type.
// Creates pass the change id as an idempotency key so a crash between
// remote success and local dequeue cannot duplicate the record on
// backends that honor the key.
func (o *Orchestrator) replay(ctx context.Context, change domain.QueuedChange) error {
	switch change.Type {
	case domain.ChangeCreatePortfolio:
		var p domain.Portfolio
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		_, err := o.api.CreatePortfolio(ctx, p, change.ID)
		return err

	case domain.ChangeUpdatePortfolio:
		var p domain.Portfolio
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		_, err := o.api.UpdatePortfolio(ctx, p)
		return err

	case domain.ChangeDeletePortfolio:
		var d domain.DeletePayload
		if err := json.Unmarshal(change.Payload, &d); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		return o.api.DeletePortfolio(ctx, d.ID)

	case domain.ChangeCreateAsset:
		var a domain.Asset
		if err := json.Unmarshal(change.Payload, &a); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		_, err := o.api.CreateAsset(ctx, a, change.ID)
		return err

	case domain.ChangeUpdateAsset:
		var a domain.Asset
		if err := json.Unmarshal(change.Payload, &a); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		_, err := o.api.UpdateAsset(ctx, a)
		return err

	case domain.ChangeDeleteAsset:
		var d domain.DeletePayload
		if err := json.Unmarshal(change.Payload, &d); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		return o.api.DeleteAsset(ctx, d.PortfolioID, d.ID)

	case domain.ChangeUpdateProfile:
		var p domain.UserProfile
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return fmt.Errorf("corrupt payload: %w", err)
		}
		_, err := o.api.UpdateProfile(ctx, p)
		return err

	default:
		return fmt.Errorf("unknown change type: %s", change.Type)
	}
}

// pull refreshes the canonical collections. Portfolios go first because
// their result defines the known-portfolio set; the profile and each
// portfolio's assets then fetch concurrently. Each fetch is isolated: a
// failure is recorded and does not abort the others.
func (o *Orchestrator) pull(ctx context.Context) (pullsOK, pullsFailed int, errs []domain.SyncError) {
	var knownIDs []string

	portfolios, err := o.api.ListPortfolios(ctx)
	if err != nil {
		pullsFailed++
		errs = append(errs, domain.SyncError{
			ChangeID: "pull:portfolios",
			Type:     domain.ErrTypePull,
			Message:  err.Error(),
		})

		// Fall back to the cached portfolio set so asset pulls can
		// still proceed.
		cached, cerr := o.store.GetAll(ctx, storage.CollectionPortfolios)
		if cerr != nil {
			slog.Error("Failed to read cached portfolios", slog.Any("error", cerr))
		}
		for id := range cached {
			knownIDs = append(knownIDs, id)
		}
	} else {
		entries := make(map[string][]byte, len(portfolios))
		for _, p := range portfolios {
			data, merr := json.Marshal(p)
			if merr != nil {
				slog.Error("Failed to marshal portfolio", slog.String("id", p.ID), slog.Any("error", merr))
				continue
			}
			entries[p.ID] = data
			knownIDs = append(knownIDs, p.ID)
		}
		if werr := o.store.ReplaceCollection(ctx, storage.CollectionPortfolios, entries); werr != nil {
			slog.Error("Failed to cache portfolios", slog.Any("error", werr))
		}
		pullsOK++
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, perr := o.api.GetProfile(gctx)
		mu.Lock()
		defer mu.Unlock()
		if perr != nil {
			pullsFailed++
			errs = append(errs, domain.SyncError{
				ChangeID: "pull:profile",
				Type:     domain.ErrTypePull,
				Message:  perr.Error(),
			})
			return nil
		}
		data, merr := json.Marshal(profile)
		if merr != nil {
			slog.Error("Failed to marshal profile", slog.Any("error", merr))
			return nil
		}
		if werr := o.store.ReplaceCollection(gctx, storage.CollectionProfile, map[string][]byte{profile.ID: data}); werr != nil {
			slog.Error("Failed to cache profile", slog.Any("error", werr))
		}
		pullsOK++
		return nil
	})

	for _, pid := range knownIDs {
		pid := pid
		g.Go(func() error {
			assets, aerr := o.api.ListAssets(gctx, pid)
			mu.Lock()
			defer mu.Unlock()
			if aerr != nil {
				pullsFailed++
				errs = append(errs, domain.SyncError{
					ChangeID: "pull:assets:" + pid,
					Type:     domain.ErrTypePull,
					Message:  aerr.Error(),
				})
				return nil
			}
			entries := make(map[string][]byte, len(assets))
			for _, a := range assets {
				data, merr := json.Marshal(a)
				if merr != nil {
					slog.Error("Failed to marshal asset", slog.String("id", a.ID), slog.Any("error", merr))
					continue
				}
				entries[a.ID] = data
			}
			if werr := o.store.ReplaceCollection(gctx, storage.CollectionAssets(pid), entries); werr != nil {
				slog.Error("Failed to cache assets", slog.String("portfolio", pid), slog.Any("error", werr))
			}
			pullsOK++
			return nil
		})
	}

	g.Wait()

	return pullsOK, pullsFailed, errs
}

// PendingChangesCount returns the number of queued changes.
// Storage failures surface as zero with a log line.
func (o *Orchestrator) PendingChangesCount(ctx context.Context) int {
	count, err := o.store.PendingCount(ctx)
	if err != nil {
		slog.Error("Failed to count pending changes", slog.Any("error", err))
		return 0
	}
	return count
}

// LastUpdated returns the cache's last successful write time.
func (o *Orchestrator) LastUpdated(ctx context.Context) (time.Time, bool) {
	ts, ok, err := o.store.LastUpdated(ctx)
	if err != nil {
		slog.Error("Failed to read last update time", slog.Any("error", err))
		return time.Time{}, false
	}
	return ts, ok
}
