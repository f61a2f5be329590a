package remote

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/infra"
)

func TestMock_CreateHonorsIdempotencyKey(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	first, err := m.CreatePortfolio(ctx, domain.Portfolio{Name: "Growth"}, "key-1")
	require.NoError(t, err)

	// Replaying the same key must not create a second portfolio.
	second, err := m.CreatePortfolio(ctx, domain.Portfolio{Name: "Growth"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := m.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMock_AssetLifecycle(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	p, err := m.CreatePortfolio(ctx, domain.Portfolio{Name: "Growth"}, "")
	require.NoError(t, err)

	a, err := m.CreateAsset(ctx, domain.Asset{PortfolioID: p.ID, Symbol: "VTI"}, "")
	require.NoError(t, err)

	a.Symbol = "VOO"
	updated, err := m.UpdateAsset(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "VOO", updated.Symbol)

	require.NoError(t, m.DeleteAsset(ctx, p.ID, a.ID))

	assets, err := m.ListAssets(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestMock_UpdateMissingFails(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	_, err := m.UpdatePortfolio(ctx, domain.Portfolio{ID: "ghost"})
	assert.Error(t, err)

	_, err = m.UpdateAsset(ctx, domain.Asset{ID: "ghost", PortfolioID: "ghost"})
	assert.Error(t, err)
}

func TestMock_DeletePortfolioCascades(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	p, err := m.CreatePortfolio(ctx, domain.Portfolio{Name: "Doomed"}, "")
	require.NoError(t, err)
	_, err = m.CreateAsset(ctx, domain.Asset{PortfolioID: p.ID, Symbol: "VTI"}, "")
	require.NoError(t, err)

	require.NoError(t, m.DeletePortfolio(ctx, p.ID))

	assets, err := m.ListAssets(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestMock_FailWithHook(t *testing.T) {
	m := NewMock()
	m.FailWith = func(op string) error {
		if op == "GetProfile" {
			return fmt.Errorf("injected")
		}
		return nil
	}

	_, err := m.GetProfile(context.Background())
	assert.EqualError(t, err, "injected")

	_, err = m.ListPortfolios(context.Background())
	assert.NoError(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := &infra.Config{}
	cfg.Sync.Mode = "mock"

	api, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, api)

	cfg.Sync.Mode = "live"
	cfg.API.BaseURL = "https://api.example.com"
	cfg.API.TimeoutSec = 10

	api, err = NewFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, api)

	cfg.Sync.Mode = "paper"
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}
