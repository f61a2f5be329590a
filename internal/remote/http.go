package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
)

// ErrUnavailable is returned when the circuit breaker is open and the
// call fails fast without touching the network. It is an ordinary
// retryable failure as far as the sync engine is concerned.
var ErrUnavailable = errors.New("remote: backend unavailable (circuit open)")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient talks to the portfolio backend over plain JSON/HTTP.
// Every call carries a bounded timeout (owned here, not by the sync
// engine), passes the shared rate limiter, and is guarded by a circuit
// breaker so a dead backend fails fast instead of eating the timeout
// for every queued change.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *infra.RateLimiter
	breaker *infra.CircuitBreaker
}

// NewHTTPClient creates a live backend client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: infra.GetAPILimiter(),
		breaker: infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("portfolio-api")),
	}
}

// doJSON performs one request/response cycle. out may be nil for calls
// that discard the response body.
func (c *HTTPClient) doJSON(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	if !c.breaker.Allow() {
		return ErrUnavailable
	}
	c.limiter.Wait()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	c.breaker.RecordSuccess()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	var portfolios []domain.Portfolio
	if err := c.doJSON(ctx, http.MethodGet, "/v1/portfolios", "", nil, &portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

func (c *HTTPClient) CreatePortfolio(ctx context.Context, p domain.Portfolio, idempotencyKey string) (domain.Portfolio, error) {
	var created domain.Portfolio
	if err := c.doJSON(ctx, http.MethodPost, "/v1/portfolios", idempotencyKey, p, &created); err != nil {
		return domain.Portfolio{}, err
	}
	return created, nil
}

func (c *HTTPClient) UpdatePortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error) {
	var updated domain.Portfolio
	path := "/v1/portfolios/" + url.PathEscape(p.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, "", p, &updated); err != nil {
		return domain.Portfolio{}, err
	}
	return updated, nil
}

func (c *HTTPClient) DeletePortfolio(ctx context.Context, id string) error {
	path := "/v1/portfolios/" + url.PathEscape(id)
	return c.doJSON(ctx, http.MethodDelete, path, "", nil, nil)
}

func (c *HTTPClient) ListAssets(ctx context.Context, portfolioID string) ([]domain.Asset, error) {
	var assets []domain.Asset
	path := "/v1/portfolios/" + url.PathEscape(portfolioID) + "/assets"
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (c *HTTPClient) CreateAsset(ctx context.Context, a domain.Asset, idempotencyKey string) (domain.Asset, error) {
	var created domain.Asset
	path := "/v1/portfolios/" + url.PathEscape(a.PortfolioID) + "/assets"
	if err := c.doJSON(ctx, http.MethodPost, path, idempotencyKey, a, &created); err != nil {
		return domain.Asset{}, err
	}
	return created, nil
}

func (c *HTTPClient) UpdateAsset(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	var updated domain.Asset
	path := "/v1/portfolios/" + url.PathEscape(a.PortfolioID) + "/assets/" + url.PathEscape(a.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, "", a, &updated); err != nil {
		return domain.Asset{}, err
	}
	return updated, nil
}

func (c *HTTPClient) DeleteAsset(ctx context.Context, portfolioID, id string) error {
	path := "/v1/portfolios/" + url.PathEscape(portfolioID) + "/assets/" + url.PathEscape(id)
	return c.doJSON(ctx, http.MethodDelete, path, "", nil, nil)
}

func (c *HTTPClient) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.doJSON(ctx, http.MethodGet, "/v1/profile", "", nil, &profile); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	var updated domain.UserProfile
	if err := c.doJSON(ctx, http.MethodPut, "/v1/profile", "", p, &updated); err != nil {
		return domain.UserProfile{}, err
	}
	return updated, nil
}
