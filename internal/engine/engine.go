package engine

import (
	"errors"
	"fmt"
	"papertrader/internal/id"
	"papertrader/internal/ledger"
	"papertrader/types"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrAccountMismatch = errors.New("state belongs to another account")
	ErrInvalidState    = errors.New("invalid engine state")
)

var _ PortfolioApi = (*Engine)(nil)

// Engine owns the position book, transaction log, realized P&L and equity
// curve of one trading account, and routes every cash movement through the
// account's ledger. All mutations run under a single lock.
type Engine struct {
	mu          sync.RWMutex
	config      *PortfolioConfig
	account     *ledger.Account
	positions   map[string]*types.Position
	fills       []types.Transaction // oldest first
	realizedPnL decimal.Decimal
	equityCurve []types.EquitySnapshot
	listeners   []Listener
	seq         uint64 // last event number handed out
	delivery    *delivery

	now    func() time.Time
	newID  func(time.Time) string
	logger *zap.Logger
}

func NewEngine(account *ledger.Account, config *PortfolioConfig, logger *zap.Logger) *Engine {
	if config == nil {
		config = DefaultPortfolioConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config:    config,
		account:   account,
		positions: make(map[string]*types.Position),
		delivery:  newDelivery(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     id.NewTransactionID,
		logger:    logger.With(zap.String("account", account.ID())),
	}
}

// NewEngineFromState rebuilds an engine from a persisted state.
func NewEngineFromState(state types.State, config *PortfolioConfig, logger *zap.Logger) (*Engine, error) {
	account, err := ledger.OpenAccount(state.Account.ID, state.Account.CashBalance)
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	e := NewEngine(account, config, logger)
	if err := e.Restore(state); err != nil {
		return nil, err
	}
	return e, nil
}

// AddListener registers l for all subsequent events.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) Config() *PortfolioConfig { return e.config }

func (e *Engine) AccountID() string { return e.account.ID() }

func (e *Engine) Balance() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.account.Balance()
}

func (e *Engine) RealizedPnL() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.realizedPnL
}

// Transactions returns the fill log, most recent first.
func (e *Engine) Transactions() []types.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.transactionsLocked()
}

func (e *Engine) transactionsLocked() []types.Transaction {
	out := make([]types.Transaction, len(e.fills))
	for i, tx := range e.fills {
		out[len(e.fills)-1-i] = tx
	}
	return out
}

// EquityCurve returns the sampled account values, oldest first.
func (e *Engine) EquityCurve() []types.EquitySnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]types.EquitySnapshot(nil), e.equityCurve...)
}

// Snapshot returns a copy of the whole engine state.
func (e *Engine) Snapshot() types.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() types.State {
	return types.State{
		Account:      e.account.Snapshot(),
		Positions:    e.positionsLocked(),
		Transactions: e.transactionsLocked(),
		RealizedPnL:  e.realizedPnL,
		EquityCurve:  append([]types.EquitySnapshot(nil), e.equityCurve...),
	}
}

// Restore replaces the engine state with state. The state is validated first;
// on error nothing is changed.
func (e *Engine) Restore(state types.State) error {
	if state.Account.ID != e.account.ID() {
		return fmt.Errorf("%w: %q != %q", ErrAccountMismatch, state.Account.ID, e.account.ID())
	}
	positions, err := validateState(state)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.account.Reset(state.Account.CashBalance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	e.positions = positions
	e.fills = make([]types.Transaction, len(state.Transactions))
	for i, tx := range state.Transactions {
		e.fills[len(state.Transactions)-1-i] = tx
	}
	e.realizedPnL = state.RealizedPnL
	e.equityCurve = append([]types.EquitySnapshot(nil), state.EquityCurve...)
	return nil
}

func validateState(state types.State) (map[string]*types.Position, error) {
	if state.Account.CashBalance.IsNegative() {
		return nil, fmt.Errorf("%w: negative cash balance %s", ErrInvalidState, state.Account.CashBalance)
	}
	positions := make(map[string]*types.Position, len(state.Positions))
	for _, p := range state.Positions {
		sym := types.NormalizeSymbol(p.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("%w: position without symbol", ErrInvalidState)
		}
		if p.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s quantity %d", ErrInvalidState, sym, p.Quantity)
		}
		if p.AverageCost.IsNegative() {
			return nil, fmt.Errorf("%w: %s average cost %s", ErrInvalidState, sym, p.AverageCost)
		}
		if _, dup := positions[sym]; dup {
			return nil, fmt.Errorf("%w: duplicate position %s", ErrInvalidState, sym)
		}
		positions[sym] = &types.Position{Symbol: sym, Quantity: p.Quantity, AverageCost: p.AverageCost}
	}
	for i := 1; i < len(state.EquityCurve); i++ {
		if state.EquityCurve[i].Timestamp.Before(state.EquityCurve[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: equity curve out of order at %d", ErrInvalidState, i)
		}
	}
	return positions, nil
}

// Reset wipes positions, fills, realized P&L and the equity curve, and puts
// the configured starting cash back in the account.
func (e *Engine) Reset() error {
	e.mu.Lock()
	if err := e.account.Reset(e.config.initialCash); err != nil {
		e.mu.Unlock()
		return err
	}
	e.positions = make(map[string]*types.Position)
	e.fills = nil
	e.realizedPnL = decimal.Zero
	e.equityCurve = nil
	ev := e.eventLocked(EventReset, e.now().UTC())
	listeners := e.listeners
	e.mu.Unlock()

	e.logger.Info("trading account reset", zap.String("balance", e.config.initialCash.String()))
	e.notify(listeners, ev)
	return nil
}

// eventLocked numbers a new event. Numbers follow commit order because they
// are taken under the engine lock.
func (e *Engine) eventLocked(kind EventKind, ts time.Time) Event {
	e.seq++
	return Event{Seq: e.seq, Kind: kind, AccountID: e.account.ID(), Time: ts}
}

// notify hands ev to every listener once all earlier events have been
// delivered.
func (e *Engine) notify(listeners []Listener, ev Event) {
	e.delivery.wait(ev.Seq)
	defer e.delivery.done()
	for _, l := range listeners {
		l.OnEvent(ev)
	}
}

// delivery lets notifications run outside the engine lock while still
// reaching listeners one at a time in event number order.
type delivery struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
}

func newDelivery() *delivery {
	d := &delivery{next: 1}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *delivery) wait(seq uint64) {
	d.mu.Lock()
	for d.next != seq {
		d.cond.Wait()
	}
	d.mu.Unlock()
}

func (d *delivery) done() {
	d.mu.Lock()
	d.next++
	d.mu.Unlock()
	d.cond.Broadcast()
}

func sortPositions(ps []types.Position) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Symbol < ps[j].Symbol })
}
