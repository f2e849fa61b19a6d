package engine

import (
	"errors"
	"fmt"
	"papertrader/internal/ledger"
	"papertrader/types"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type order struct {
	symbol   string
	side     types.Side
	quantity int64
	price    decimal.Decimal
}

func (o order) reject(reason types.RejectReason, message string) types.OrderResult {
	res := types.Rejected(reason, message)
	res.Symbol = o.symbol
	res.Side = o.side
	res.Quantity = o.quantity
	res.Price = o.price
	return res
}

// ExecuteOrder fills a market order for quantity shares of symbol at price.
// The order either fills completely or is rejected without changing any
// state; the reason is reported in the result rather than as an error.
func (e *Engine) ExecuteOrder(symbol string, side types.Side, quantity int64, price decimal.Decimal) types.OrderResult {
	return e.execute(e.now, order{symbol: symbol, side: side, quantity: quantity, price: price})
}

func (e *Engine) execute(clock func() time.Time, o order) types.OrderResult {
	e.mu.Lock()
	ts := clock().UTC()
	result := e.executeLocked(ts, o)
	ev := e.eventLocked(EventOrder, ts)
	ev.Order = &result
	listeners := e.listeners
	e.mu.Unlock()

	e.logResult(result)
	e.notify(listeners, ev)
	return result
}

func (e *Engine) executeLocked(ts time.Time, o order) types.OrderResult {
	if o.quantity <= 0 {
		return o.reject(types.RejectInvalidQuantity, "Quantity must be positive")
	}
	o.symbol = types.NormalizeSymbol(o.symbol)
	if o.symbol == "" {
		return o.reject(types.RejectInvalidSymbol, "Symbol is required")
	}
	if !o.price.IsPositive() {
		return o.reject(types.RejectInvalidPrice, "Price must be positive")
	}

	switch o.side {
	case types.SideTypeBuy:
		return e.buyLocked(ts, o)
	case types.SideTypeSell:
		return e.sellLocked(ts, o)
	}
	return o.reject(types.RejectInvalidSide, fmt.Sprintf("Unknown order side %q", o.side))
}

func (e *Engine) buyLocked(ts time.Time, o order) types.OrderResult {
	totalCost := o.price.Mul(decimal.NewFromInt(o.quantity))

	if err := e.account.Debit(totalCost); err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			e.logger.Warn("debit failed", zap.String("symbol", o.symbol), zap.Error(err))
		}
		return o.reject(types.RejectInsufficientFunds, "Insufficient funds")
	}
	e.applyBuyLocked(o.symbol, o.quantity, o.price)

	tx := e.recordFillLocked(ts, o, totalCost, decimal.Zero)
	return types.OrderResult{
		Success:     true,
		Message:     fmt.Sprintf("Bought %d %s @ %s", o.quantity, o.symbol, types.FormatUSD(o.price)),
		Symbol:      o.symbol,
		Side:        o.side,
		Quantity:    o.quantity,
		Price:       o.price,
		Transaction: &tx,
	}
}

func (e *Engine) sellLocked(ts time.Time, o order) types.OrderResult {
	pos, ok := e.positions[o.symbol]
	if !ok || pos.Quantity < o.quantity {
		return o.reject(types.RejectInsufficientShares, "Insufficient shares")
	}

	proceeds := o.price.Mul(decimal.NewFromInt(o.quantity))
	if err := e.account.Credit(proceeds); err != nil {
		// price and quantity were validated positive
		panic(fmt.Sprintf("credit %s: %v", proceeds, err))
	}
	realized := e.applySellLocked(o.symbol, o.quantity, o.price)

	tx := e.recordFillLocked(ts, o, proceeds, realized)
	return types.OrderResult{
		Success:     true,
		Message:     fmt.Sprintf("Sold %d %s (P&L: %s)", o.quantity, o.symbol, types.FormatUSD(realized)),
		Symbol:      o.symbol,
		Side:        o.side,
		Quantity:    o.quantity,
		Price:       o.price,
		Transaction: &tx,
		RealizedPnL: realized,
	}
}

func (e *Engine) recordFillLocked(ts time.Time, o order, total, realized decimal.Decimal) types.Transaction {
	tx := types.Transaction{
		ID:          e.newID(ts),
		Symbol:      o.symbol,
		Side:        o.side,
		Type:        types.TypeMarket,
		Quantity:    o.quantity,
		Price:       o.price,
		Total:       total,
		RealizedPnL: realized,
		Timestamp:   ts,
		Status:      types.StatusFilled,
	}
	e.fills = append(e.fills, tx)
	return tx
}

func (e *Engine) logResult(res types.OrderResult) {
	fields := []zap.Field{
		zap.String("symbol", res.Symbol),
		zap.String("side", string(res.Side)),
		zap.Int64("quantity", res.Quantity),
		zap.String("price", res.Price.String()),
	}
	if !res.Success {
		e.logger.Debug("order rejected", append(fields, zap.String("reason", string(res.Reason)))...)
		return
	}
	fields = append(fields, zap.String("id", res.Transaction.ID))
	if res.Side == types.SideTypeSell {
		fields = append(fields, zap.String("realized_pnl", res.RealizedPnL.String()))
	}
	e.logger.Info("order filled", fields...)
}
