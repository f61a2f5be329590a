package domain

import "github.com/shopspring/decimal"

// Portfolio is a user-owned grouping of assets, mirroring the remote schema.
// IDs are opaque strings assigned by the remote service (or locally for
// offline creates, in which case the remote accepts the client id).
type Portfolio struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Currency       string `json:"currency"` // ISO code, e.g. "USD"
	CreatedAtUnixM int64  `json:"created_at_unix"`
	UpdatedAtUnixM int64  `json:"updated_at_unix"`
}

// Asset is a single holding inside a portfolio.
// Quantities and prices use decimal to avoid float drift on money math.
type Asset struct {
	ID             string          `json:"id"`
	PortfolioID    string          `json:"portfolio_id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	UpdatedAtUnixM int64           `json:"updated_at_unix"`
}

// MarketValue returns quantity * current price.
func (a Asset) MarketValue() decimal.Decimal {
	return a.Quantity.Mul(a.CurrentPrice)
}

// CostBasis returns quantity * purchase price.
func (a Asset) CostBasis() decimal.Decimal {
	return a.Quantity.Mul(a.PurchasePrice)
}

// UnrealizedGain returns market value minus cost basis.
func (a Asset) UnrealizedGain() decimal.Decimal {
	return a.MarketValue().Sub(a.CostBasis())
}
