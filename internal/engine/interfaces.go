package engine

import (
	"papertrader/types"
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventOrder  EventKind = "ORDER"
	EventEquity EventKind = "EQUITY"
	EventReset  EventKind = "RESET"
)

// Event describes a change the engine has just made (or, for rejected
// orders, refused to make). Exactly one of Order and Equity is set for
// EventOrder and EventEquity. Seq numbers events in commit order.
type Event struct {
	Seq       uint64
	Kind      EventKind
	AccountID string
	Time      time.Time
	Order     *types.OrderResult
	Equity    *types.EquitySnapshot
}

// Listener is notified after every engine operation, once the engine lock is
// released. Events reach each listener one at a time in Seq order. Listeners
// run on the caller's goroutine and may read the engine, but must not mutate
// it.
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }

// PortfolioApi is the read side of the engine.
type PortfolioApi interface {
	Balance() decimal.Decimal
	GetHolding(symbol string) (types.Position, bool)
	Positions() []types.Position
	Transactions() []types.Transaction
	RealizedPnL() decimal.Decimal
	EquityCurve() []types.EquitySnapshot
}
