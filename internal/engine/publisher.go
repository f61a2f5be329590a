package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/storage"
)

// Phase is the coarse sync phase shown to consumers.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseSyncing Phase = "syncing"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Progress milestones. Progress is coarse by design: it advances at fixed
// points of the pass, never per item.
const (
	ProgressStart       = 0
	ProgressQueueLoaded = 10
	ProgressDrained     = 60
	ProgressPulled      = 90
	ProgressDone        = 100
)

// State is the snapshot consumers (UI) observe.
type State struct {
	Phase             Phase              `json:"phase"`
	Progress          int                `json:"progress"`
	PendingChanges    int                `json:"pending_changes"`
	LastSyncedAtUnixM int64              `json:"last_synced_at_unix,omitempty"`
	Errors            []domain.SyncError `json:"errors,omitempty"`
}

// StatePublisher exposes the current sync state to subscribers. The
// pending count is polled from the queue at a fixed interval and
// refreshed immediately after every drain. A success phase auto-reverts
// to idle after a cool-down so transient UI badges don't stick.
//
// A nil *StatePublisher is valid: every method is a no-op, which lets
// the orchestrator run headless.
type StatePublisher struct {
	store        *storage.CacheStore
	pollInterval time.Duration
	cooldown     time.Duration
	nowFn        func() time.Time

	mu         sync.Mutex
	state      State
	subs       map[chan State]struct{}
	generation int // invalidates stale cool-down reverts

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatePublisher creates a publisher polling the queue at pollInterval
// and reverting success -> idle after cooldown.
func NewStatePublisher(store *storage.CacheStore, pollInterval, cooldown time.Duration) *StatePublisher {
	return &StatePublisher{
		store:        store,
		pollInterval: pollInterval,
		cooldown:     cooldown,
		nowFn:        time.Now,
		state:        State{Phase: PhaseIdle},
		subs:         make(map[chan State]struct{}),
	}
}

// Start launches the pending-count poll loop.
func (p *StatePublisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.RefreshPending(ctx)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RefreshPending(ctx)
			}
		}
	}()
}

// Stop terminates the poll loop.
func (p *StatePublisher) Stop() {
	if p == nil {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Current returns the latest snapshot.
func (p *StatePublisher) Current() State {
	if p == nil {
		return State{Phase: PhaseIdle}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe returns a channel that immediately receives the current
// snapshot and every update afterwards. Slow subscribers miss
// intermediate snapshots rather than blocking the publisher.
func (p *StatePublisher) Subscribe() chan State {
	ch := make(chan State, 4)
	if p == nil {
		ch <- State{Phase: PhaseIdle}
		return ch
	}

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	cur := p.state
	p.mu.Unlock()

	ch <- cur
	return ch
}

// Unsubscribe removes a subscriber channel.
func (p *StatePublisher) Unsubscribe(ch chan State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.subs, ch)
	p.mu.Unlock()
}

// BeginSync marks the start of a pass: phase syncing, progress reset.
func (p *StatePublisher) BeginSync() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.generation++
	p.state.Phase = PhaseSyncing
	p.state.Progress = ProgressStart
	p.state.Errors = nil
	p.broadcastLocked()
	p.mu.Unlock()
}

// SetProgress advances the milestone progress. Progress never moves
// backwards within a pass.
func (p *StatePublisher) SetProgress(progress int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if progress > p.state.Progress {
		p.state.Progress = progress
		p.broadcastLocked()
	}
	p.mu.Unlock()
}

// RefreshPending re-reads the pending count from the queue.
func (p *StatePublisher) RefreshPending(ctx context.Context) {
	if p == nil {
		return
	}
	count, err := p.store.PendingCount(ctx)
	if err != nil {
		slog.Error("Failed to poll pending count", slog.Any("error", err))
		return
	}

	p.mu.Lock()
	if count != p.state.PendingChanges {
		p.state.PendingChanges = count
		p.broadcastLocked()
	}
	p.mu.Unlock()
}

// FinishSync publishes the pass result and, on success, schedules the
// cool-down revert to idle.
func (p *StatePublisher) FinishSync(result domain.SyncResult) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.state.Progress = ProgressDone

	if result.Status == domain.SyncSuccess {
		p.state.Phase = PhaseSuccess
		p.state.LastSyncedAtUnixM = p.nowFn().UnixMicro()
		p.state.Errors = nil

		gen := p.generation
		time.AfterFunc(p.cooldown, func() {
			p.mu.Lock()
			// Only revert if no newer pass has started since.
			if p.generation == gen && p.state.Phase == PhaseSuccess {
				p.state.Phase = PhaseIdle
				p.broadcastLocked()
			}
			p.mu.Unlock()
		})
	} else {
		p.state.Phase = PhaseError
		p.state.Errors = result.Errors
		if result.Status == domain.SyncPartial {
			// Partial passes still moved data; record the time so the
			// staleness indicator reflects reality.
			p.state.LastSyncedAtUnixM = p.nowFn().UnixMicro()
		}
	}

	p.broadcastLocked()
	p.mu.Unlock()
}

// broadcastLocked fans the current state out to subscribers.
// Must be called with mu held.
func (p *StatePublisher) broadcastLocked() {
	for ch := range p.subs {
		select {
		case ch <- p.state:
		default:
		}
	}
}
