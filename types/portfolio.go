package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID          string          `json:"id"`
	CashBalance decimal.Decimal `json:"cashBalance"`
}

// Position is one entry of the position book. Quantity is always positive;
// a position that is sold down to zero is removed from the book.
type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"averageCost"`
}

// CostBasis returns Quantity * AverageCost.
func (p Position) CostBasis() decimal.Decimal {
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

// State is the full serializable engine state.
type State struct {
	Account      Account          `json:"account"`
	Positions    []Position       `json:"positions"`
	Transactions []Transaction    `json:"transactions"` // most recent first
	RealizedPnL  decimal.Decimal  `json:"realizedPnL"`
	EquityCurve  []EquitySnapshot `json:"equityCurve"` // oldest first
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
