package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is a time-stamped market order, used when replaying a batch of orders.
type OrderRequest struct {
	Time     time.Time
	Symbol   string
	Side     Side
	Quantity int64
	Price    decimal.Decimal
}

func NewOrderRequest(
	t time.Time,
	symbol string,
	side Side,
	quantity int64,
	price decimal.Decimal,
) OrderRequest {
	return OrderRequest{
		Time:     t,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	}
}

// OrderResult is what the engine reports back for every order attempt.
// Rejections are values, not errors: Success is false and Reason says why.
type OrderResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Reason      RejectReason    `json:"reason,omitempty"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Transaction *Transaction    `json:"transaction,omitempty"`
	RealizedPnL decimal.Decimal `json:"realizedPnL"`
}

func Rejected(reason RejectReason, message string) OrderResult {
	return OrderResult{Reason: reason, Message: message}
}
