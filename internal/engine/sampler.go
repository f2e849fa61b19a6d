package engine

import (
	"papertrader/types"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TrackPortfolioValue marks the book to market with prices and appends the
// total account value to the equity curve, unless the previous sample is
// younger than the configured minimum interval. Symbols missing from prices
// (or quoted at zero) are valued at their average cost.
func (e *Engine) TrackPortfolioValue(prices map[string]decimal.Decimal) {
	e.track(e.now, prices)
}

func (e *Engine) track(clock func() time.Time, prices map[string]decimal.Decimal) {
	e.mu.Lock()
	snap, ok := e.trackLocked(clock().UTC(), normalizePrices(prices))
	if !ok {
		e.mu.Unlock()
		return
	}
	ev := e.eventLocked(EventEquity, snap.Timestamp)
	ev.Equity = &snap
	listeners := e.listeners
	e.mu.Unlock()

	e.logger.Debug("equity sampled", zap.Time("time", snap.Timestamp), zap.String("value", snap.Value.String()))
	e.notify(listeners, ev)
}

func (e *Engine) trackLocked(ts time.Time, prices map[string]decimal.Decimal) (types.EquitySnapshot, bool) {
	if n := len(e.equityCurve); n > 0 {
		if ts.Sub(e.equityCurve[n-1].Timestamp) < e.config.minSampleInterval {
			return types.EquitySnapshot{}, false
		}
	}

	holdings := decimal.Zero
	for sym, pos := range e.positions {
		price, _ := markPrice(prices, sym, pos.AverageCost)
		holdings = holdings.Add(price.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	snap := types.EquitySnapshot{Timestamp: ts, Value: e.account.Balance().Add(holdings)}
	e.equityCurve = append(e.equityCurve, snap)
	return snap, true
}

// Valuation returns a read-only mark-to-market view of the account.
func (e *Engine) Valuation(prices map[string]decimal.Decimal) types.PortfolioView {
	prices = normalizePrices(prices)

	e.mu.RLock()
	defer e.mu.RUnlock()

	view := types.PortfolioView{
		Time:          e.now(),
		Cash:          e.account.Balance(),
		HoldingsValue: decimal.Zero,
		CostBasis:     decimal.Zero,
		RealizedPnL:   e.realizedPnL,
	}
	for _, pos := range e.positionsLocked() {
		price, priced := markPrice(prices, pos.Symbol, pos.AverageCost)
		qty := decimal.NewFromInt(pos.Quantity)
		snap := types.PositionSnapshot{
			Symbol:      pos.Symbol,
			Quantity:    pos.Quantity,
			AverageCost: pos.AverageCost,
			LastPrice:   price,
			Priced:      priced,
			MarketValue: price.Mul(qty),
			CostBasis:   pos.CostBasis(),
		}
		snap.UnrealizedPnL = snap.MarketValue.Sub(snap.CostBasis)
		snap.UnrealizedPct = decimal.Zero
		if snap.CostBasis.IsPositive() {
			snap.UnrealizedPct = snap.UnrealizedPnL.Div(snap.CostBasis).Mul(decimal.NewFromInt(100))
		}
		view.Positions = append(view.Positions, snap)
		view.HoldingsValue = view.HoldingsValue.Add(snap.MarketValue)
		view.CostBasis = view.CostBasis.Add(snap.CostBasis)
	}
	view.TotalValue = view.Cash.Add(view.HoldingsValue)
	view.UnrealizedPnL = view.HoldingsValue.Sub(view.CostBasis)
	view.TotalPnL = view.RealizedPnL.Add(view.UnrealizedPnL)
	return view
}

func markPrice(prices map[string]decimal.Decimal, symbol string, fallback decimal.Decimal) (decimal.Decimal, bool) {
	if p, ok := prices[symbol]; ok && p.IsPositive() {
		return p, true
	}
	return fallback, false
}

func normalizePrices(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		out[types.NormalizeSymbol(sym)] = p
	}
	return out
}
