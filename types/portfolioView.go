package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type EquitySnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// PortfolioView is a mark-to-market view of the account at a point in time.
type PortfolioView struct {
	Time          time.Time
	Cash          decimal.Decimal
	HoldingsValue decimal.Decimal
	CostBasis     decimal.Decimal
	TotalValue    decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal
	Positions     []PositionSnapshot
}

// BuyingPower is the cash available for new orders.
func (v PortfolioView) BuyingPower() decimal.Decimal {
	return v.Cash
}

type PositionSnapshot struct {
	Symbol        string
	Quantity      int64
	AverageCost   decimal.Decimal
	LastPrice     decimal.Decimal
	Priced        bool // false when LastPrice fell back to AverageCost
	MarketValue   decimal.Decimal
	CostBasis     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	UnrealizedPct decimal.Decimal
}
