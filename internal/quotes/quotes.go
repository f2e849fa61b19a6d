// Package quotes supplies market prices to the valuation sampler.
package quotes

import (
	"context"
	"papertrader/types"
	"sync"

	"github.com/shopspring/decimal"
)

// Source returns the latest known price per symbol. Symbols without a quote
// are simply absent from the map.
type Source interface {
	Quotes(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Static is a fixed, settable price table.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[types.NormalizeSymbol(sym)] = p
	}
	return s
}

func (s *Static) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[types.NormalizeSymbol(symbol)] = price
}

func (s *Static) Quotes(context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPrices(s.prices), nil
}

func copyPrices(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
