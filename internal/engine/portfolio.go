package engine

import (
	"papertrader/types"

	"github.com/shopspring/decimal"
)

// GetHolding looks up the position for symbol (case-insensitive).
func (e *Engine) GetHolding(symbol string) (types.Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, ok := e.positions[types.NormalizeSymbol(symbol)]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// Positions returns a copy of the position book sorted by symbol.
func (e *Engine) Positions() []types.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positionsLocked()
}

func (e *Engine) positionsLocked() []types.Position {
	out := make([]types.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sortPositions(out)
	return out
}

// applyBuyLocked blends a filled buy into the book. Cash has already been debited.
func (e *Engine) applyBuyLocked(symbol string, quantity int64, price decimal.Decimal) {
	pos := e.positions[symbol]
	if pos == nil {
		e.positions[symbol] = &types.Position{
			Symbol:      symbol,
			Quantity:    quantity,
			AverageCost: price,
		}
		return
	}
	pos.AverageCost = weightedAvg(pos.AverageCost, decimal.NewFromInt(pos.Quantity), price, decimal.NewFromInt(quantity))
	pos.Quantity += quantity
}

// applySellLocked removes quantity from the book and returns the realized
// P&L against the average cost. The caller has checked the holding.
func (e *Engine) applySellLocked(symbol string, quantity int64, price decimal.Decimal) decimal.Decimal {
	pos := e.positions[symbol]
	qty := decimal.NewFromInt(quantity)
	realized := price.Mul(qty).Sub(pos.AverageCost.Mul(qty))
	e.realizedPnL = e.realizedPnL.Add(realized)

	if remaining := pos.Quantity - quantity; remaining > 0 {
		pos.Quantity = remaining
	} else {
		delete(e.positions, symbol)
	}
	return realized
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
