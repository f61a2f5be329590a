package remote

import (
	"context"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
)

// API is the remote CRUD service the sync engine replays against.
// Every call either returns data or a failure; the engine treats all
// failures uniformly as retryable up to the retry ceiling.
//
// idempotencyKey on the create calls is a client-generated key (derived
// from the queued change id) that lets the backend de-duplicate a replay
// after a crash between remote success and local dequeue. Backends that
// ignore the key may produce a duplicate in that rare window.
type API interface {
	ListPortfolios(ctx context.Context) ([]domain.Portfolio, error)
	CreatePortfolio(ctx context.Context, p domain.Portfolio, idempotencyKey string) (domain.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error

	ListAssets(ctx context.Context, portfolioID string) ([]domain.Asset, error)
	CreateAsset(ctx context.Context, a domain.Asset, idempotencyKey string) (domain.Asset, error)
	UpdateAsset(ctx context.Context, a domain.Asset) (domain.Asset, error)
	DeleteAsset(ctx context.Context, portfolioID, id string) error

	GetProfile(ctx context.Context) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error)
}
