package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLink is a hand-driven LinkWatcher.
type fakeLink struct {
	mu      sync.Mutex
	up      bool
	updates chan bool
}

func newFakeLink(up bool) *fakeLink {
	return &fakeLink{up: up, updates: make(chan bool, 8)}
}

func (f *fakeLink) Start(ctx context.Context) {}
func (f *fakeLink) Stop()                     {}
func (f *fakeLink) Updates() <-chan bool      { return f.updates }

func (f *fakeLink) Up() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up
}

func (f *fakeLink) set(up bool) {
	f.mu.Lock()
	f.up = up
	f.mu.Unlock()
	f.updates <- up
}

// fakeProber answers with a settable value.
type fakeProber struct {
	reachable atomic.Bool
}

func (f *fakeProber) Probe(ctx context.Context) bool { return f.reachable.Load() }

func TestStatusOnline(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name string
		st   Status
		want bool
	}{
		{"both up", Status{IsConnected: true, IsInternetReachable: &yes}, true},
		{"link up, unreachable", Status{IsConnected: true, IsInternetReachable: &no}, false},
		{"link up, unknown reachability", Status{IsConnected: true}, false},
		{"link down, reachable", Status{IsConnected: false, IsInternetReachable: &yes}, false},
		{"nothing", Status{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.st.Online())
		})
	}
}

func TestMonitor_SampleCombinesLayers(t *testing.T) {
	link := newFakeLink(true)
	prober := &fakeProber{}
	prober.reachable.Store(true)

	m := NewMonitor(link, prober, time.Hour, false, nil)

	st := m.Sample(context.Background())
	assert.True(t, st.Online())
	assert.Equal(t, st, m.Current())

	prober.reachable.Store(false)
	st = m.Sample(context.Background())
	assert.False(t, st.Online())
}

func TestMonitor_SubscribeGetsImmediateValue(t *testing.T) {
	link := newFakeLink(true)
	prober := &fakeProber{}
	prober.reachable.Store(true)

	m := NewMonitor(link, prober, time.Hour, false, nil)
	m.Sample(context.Background())

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	select {
	case st := <-ch:
		assert.True(t, st.Online())
	case <-time.After(time.Second):
		t.Fatal("no immediate value on subscribe")
	}
}

func TestMonitor_TriggersExactlyOncePerTransition(t *testing.T) {
	link := newFakeLink(false)
	prober := &fakeProber{}

	var triggers atomic.Int32
	m := NewMonitor(link, prober, time.Hour, true, func() { triggers.Add(1) })

	ctx := context.Background()

	// Offline samples never trigger.
	m.Sample(ctx)
	m.Sample(ctx)
	assert.Equal(t, int32(0), triggers.Load())

	// Going online triggers once.
	link.mu.Lock()
	link.up = true
	link.mu.Unlock()
	prober.reachable.Store(true)
	m.Sample(ctx)
	assert.Equal(t, int32(1), triggers.Load())

	// Staying online does not re-trigger.
	m.Sample(ctx)
	m.Sample(ctx)
	assert.Equal(t, int32(1), triggers.Load())

	// A full offline -> online round trip triggers again.
	prober.reachable.Store(false)
	m.Sample(ctx)
	prober.reachable.Store(true)
	m.Sample(ctx)
	assert.Equal(t, int32(2), triggers.Load())
}

func TestMonitor_AutoSyncDisabledNeverTriggers(t *testing.T) {
	link := newFakeLink(true)
	prober := &fakeProber{}
	prober.reachable.Store(true)

	var triggers atomic.Int32
	m := NewMonitor(link, prober, time.Hour, false, func() { triggers.Add(1) })

	m.Sample(context.Background())
	assert.Equal(t, int32(0), triggers.Load())
}

func TestMonitor_LinkDropPublishesOffline(t *testing.T) {
	link := newFakeLink(true)
	prober := &fakeProber{}
	prober.reachable.Store(true)

	m := NewMonitor(link, prober, time.Hour, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	defer func() {
		cancel()
		m.Stop()
	}()

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	// Wait until the initial sample reports online.
	require.Eventually(t, func() bool {
		return m.Current().Online()
	}, time.Second, 5*time.Millisecond)

	link.set(false)

	require.Eventually(t, func() bool {
		cur := m.Current()
		return !cur.Online() && !cur.IsConnected
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_NilLinkDefaultsToUp(t *testing.T) {
	prober := &fakeProber{}
	prober.reachable.Store(true)

	m := NewMonitor(nil, prober, time.Hour, false, nil)

	st := m.Sample(context.Background())
	assert.True(t, st.Online())
}
