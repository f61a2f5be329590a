package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor combines the link watcher and the reachability prober into a
// single online/offline signal: online means both layers agree. It keeps
// the most recent Status so new subscribers see a value immediately, and
// fires the injected trigger exactly once per offline -> online
// transition when auto-sync is enabled.
type Monitor struct {
	link     LinkWatcher
	prober   Prober
	interval time.Duration

	autoSync bool
	onOnline func()

	mu        sync.RWMutex
	last      Status
	wasOnline bool
	subs      map[chan Status]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// noopLink stands in when no websocket endpoint is configured. It
// always reports the link as up, leaving reachability to the prober.
type noopLink struct{}

func (noopLink) Start(context.Context) {}
func (noopLink) Stop()                 {}
func (noopLink) Up() bool              { return true }
func (noopLink) Updates() <-chan bool  { return nil }

// NewMonitor creates a monitor. A nil link falls back to a no-op watcher
// that always reports up. onOnline may be nil; it is only invoked when
// autoSync is true.
func NewMonitor(link LinkWatcher, prober Prober, interval time.Duration, autoSync bool, onOnline func()) *Monitor {
	if link == nil {
		link = noopLink{}
	}
	return &Monitor{
		link:     link,
		prober:   prober,
		interval: interval,
		autoSync: autoSync,
		onOnline: onOnline,
		subs:     make(map[chan Status]struct{}),
	}
}

// Start launches the link watcher and the sampling loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.link.Start(ctx)

	m.wg.Add(1)
	go m.runLoop(ctx)
}

// Stop terminates the monitor and its link watcher.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.link.Stop()
	m.wg.Wait()
}

// Current returns the most recent status without sampling.
func (m *Monitor) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Sample probes both layers on demand and publishes the result.
func (m *Monitor) Sample(ctx context.Context) Status {
	reachable := m.prober.Probe(ctx)
	st := Status{
		IsConnected:         m.link.Up(),
		IsInternetReachable: &reachable,
		Type:                "ws",
	}
	m.publish(st)
	return st
}

// Subscribe returns a channel that immediately receives the current
// status and every transition afterwards. Slow subscribers miss
// intermediate values (latest wins); they never block the monitor.
func (m *Monitor) Subscribe() chan Status {
	ch := make(chan Status, 4)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	last := m.last
	m.mu.Unlock()

	ch <- last
	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Monitor) Unsubscribe(ch chan Status) {
	m.mu.Lock()
	delete(m.subs, ch)
	m.mu.Unlock()
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer m.wg.Done()

	// Initial sample so subscribers don't wait a full interval.
	m.Sample(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		case up := <-m.link.Updates():
			// A link transition is worth an immediate probe: a freshly
			// connected link may already be reachable, and a dropped
			// link is definitely not.
			if up {
				m.Sample(ctx)
			} else {
				no := false
				m.publish(Status{IsConnected: false, IsInternetReachable: &no, Type: "ws"})
			}
		}
	}
}

func (m *Monitor) publish(st Status) {
	online := st.Online()

	m.mu.Lock()
	transitioned := online && !m.wasOnline
	m.last = st
	m.wasOnline = online

	for ch := range m.subs {
		select {
		case ch <- st:
		default:
		}
	}
	m.mu.Unlock()

	if transitioned {
		slog.Info("📶 Connectivity restored")
		if m.autoSync && m.onOnline != nil {
			m.onOnline()
		}
	} else if !online {
		slog.Debug("Connectivity sample", "online", false,
			"link", st.IsConnected)
	}
}
