package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
)

// Status is one connectivity sample. IsInternetReachable is nil when the
// application-layer probe has not produced an answer yet (unknown).
type Status struct {
	IsConnected         bool   `json:"is_connected"`
	IsInternetReachable *bool  `json:"is_internet_reachable"`
	Type                string `json:"type"`
}

// Online reports whether both layers agree we are online.
// Unknown reachability counts as offline.
func (s Status) Online() bool {
	return s.IsConnected && s.IsInternetReachable != nil && *s.IsInternetReachable
}

// Prober answers the application-layer reachability question: can we
// actually complete a round trip to our backend right now?
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber checks reachability with a HEAD request against a cheap
// backend endpoint (e.g. /healthz).
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober with a short bounded timeout: a probe
// that hangs is as good as offline.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < 500
}
