package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
)

// Mock is an in-memory backend used by the integration harness and tests.
// FailWith, when set, is consulted before every operation; returning a
// non-nil error makes that call fail (simulating a flaky network).
type Mock struct {
	mu         sync.Mutex
	portfolios map[string]domain.Portfolio
	assets     map[string]map[string]domain.Asset // portfolioID -> assetID -> asset
	profile    domain.UserProfile
	seen       map[string]string // idempotency key -> created id

	FailWith func(op string) error
}

// NewMock creates an empty mock backend.
func NewMock() *Mock {
	return &Mock{
		portfolios: make(map[string]domain.Portfolio),
		assets:     make(map[string]map[string]domain.Asset),
		seen:       make(map[string]string),
	}
}

func (m *Mock) fail(op string) error {
	if m.FailWith != nil {
		return m.FailWith(op)
	}
	return nil
}

func (m *Mock) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	if err := m.fail("ListPortfolios"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Portfolio, 0, len(m.portfolios))
	for _, p := range m.portfolios {
		out = append(out, p)
	}
	return out, nil
}

func (m *Mock) CreatePortfolio(ctx context.Context, p domain.Portfolio, idempotencyKey string) (domain.Portfolio, error) {
	if err := m.fail("CreatePortfolio"); err != nil {
		return domain.Portfolio{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Honor the idempotency key: a replayed create returns the original.
	if idempotencyKey != "" {
		if id, ok := m.seen[idempotencyKey]; ok {
			return m.portfolios[id], nil
		}
	}

	if p.ID == "" {
		p.ID = fmt.Sprintf("pf-%d", len(m.portfolios)+1)
	}
	m.portfolios[p.ID] = p
	if idempotencyKey != "" {
		m.seen[idempotencyKey] = p.ID
	}
	slog.Debug("MOCK BACKEND: create portfolio", slog.String("id", p.ID))
	return p, nil
}

func (m *Mock) UpdatePortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error) {
	if err := m.fail("UpdatePortfolio"); err != nil {
		return domain.Portfolio{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.portfolios[p.ID]; !ok {
		return domain.Portfolio{}, fmt.Errorf("mock: portfolio %s not found", p.ID)
	}
	m.portfolios[p.ID] = p
	return p, nil
}

func (m *Mock) DeletePortfolio(ctx context.Context, id string) error {
	if err := m.fail("DeletePortfolio"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.portfolios, id)
	delete(m.assets, id)
	return nil
}

func (m *Mock) ListAssets(ctx context.Context, portfolioID string) ([]domain.Asset, error) {
	if err := m.fail("ListAssets"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Asset, 0, len(m.assets[portfolioID]))
	for _, a := range m.assets[portfolioID] {
		out = append(out, a)
	}
	return out, nil
}

func (m *Mock) CreateAsset(ctx context.Context, a domain.Asset, idempotencyKey string) (domain.Asset, error) {
	if err := m.fail("CreateAsset"); err != nil {
		return domain.Asset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := m.seen[idempotencyKey]; ok {
			return m.assets[a.PortfolioID][id], nil
		}
	}

	if a.ID == "" {
		a.ID = fmt.Sprintf("as-%d", len(m.assets[a.PortfolioID])+1)
	}
	if m.assets[a.PortfolioID] == nil {
		m.assets[a.PortfolioID] = make(map[string]domain.Asset)
	}
	m.assets[a.PortfolioID][a.ID] = a
	if idempotencyKey != "" {
		m.seen[idempotencyKey] = a.ID
	}
	slog.Debug("MOCK BACKEND: create asset",
		slog.String("portfolio", a.PortfolioID), slog.String("id", a.ID))
	return a, nil
}

func (m *Mock) UpdateAsset(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	if err := m.fail("UpdateAsset"); err != nil {
		return domain.Asset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[a.PortfolioID][a.ID]; !ok {
		return domain.Asset{}, fmt.Errorf("mock: asset %s/%s not found", a.PortfolioID, a.ID)
	}
	m.assets[a.PortfolioID][a.ID] = a
	return a, nil
}

func (m *Mock) DeleteAsset(ctx context.Context, portfolioID, id string) error {
	if err := m.fail("DeleteAsset"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.assets[portfolioID], id)
	return nil
}

func (m *Mock) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	if err := m.fail("GetProfile"); err != nil {
		return domain.UserProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile, nil
}

func (m *Mock) UpdateProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	if err := m.fail("UpdateProfile"); err != nil {
		return domain.UserProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p
	return p, nil
}

// SetProfile seeds the mock profile (integration harness).
func (m *Mock) SetProfile(p domain.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p
}
