package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
)

// LinkWatcher reports the link-layer side of connectivity: do we hold a
// live transport to the backend at all?
type LinkWatcher interface {
	Start(ctx context.Context)
	Stop()
	Up() bool
	Updates() <-chan bool
}

// WSLinkWatcher keeps a persistent websocket heartbeat open against the
// backend. A live connection means the link is up; read errors or failed
// dials drop it, and the watcher reconnects with exponential backoff.
type WSLinkWatcher struct {
	url string

	mu     sync.RWMutex
	conn   *websocket.Conn
	up     bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	updates chan bool

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewWSLinkWatcher creates a watcher for the given heartbeat endpoint.
func NewWSLinkWatcher(url string) *WSLinkWatcher {
	return &WSLinkWatcher{
		url:          url,
		updates:      make(chan bool, 8),
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start initiates the connection loop.
func (w *WSLinkWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the watcher.
func (w *WSLinkWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.close()
	w.wg.Wait()
}

// Up reports the current link state.
func (w *WSLinkWatcher) Up() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.up
}

// Updates delivers link transitions. The channel is buffered; stale
// transitions are dropped rather than blocking the read loop.
func (w *WSLinkWatcher) Updates() <-chan bool {
	return w.updates
}

func (w *WSLinkWatcher) setUp(up bool) {
	w.mu.Lock()
	changed := w.up != up
	w.up = up
	w.mu.Unlock()

	if changed {
		select {
		case w.updates <- up:
		default:
		}
	}
}

func (w *WSLinkWatcher) runLoop(ctx context.Context) {
	defer w.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Link heartbeat connection failed", "err", err, "retry", retry)
			w.setUp(false)
			delay := infra.CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0 // Reset on successful connect
		w.setUp(true)
		w.process(ctx)
		w.setUp(false)
	}
}

func (w *WSLinkWatcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if w.PingInterval > 0 {
		go w.pingLoop(ctx)
	}

	slog.Info("Link heartbeat connected", "url", w.url)
	return nil
}

func (w *WSLinkWatcher) process(ctx context.Context) {
	for {
		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		if _, _, err := c.ReadMessage(); err != nil {
			slog.Warn("Link heartbeat read error", "err", err)
			w.close()
			return
		}
	}
}

func (w *WSLinkWatcher) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c == nil {
				return
			}
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				slog.Warn("Link heartbeat ping error", "err", err)
				w.close()
				return
			}
		}
	}
}

func (w *WSLinkWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
