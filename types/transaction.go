package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable fill record.
type Transaction struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Side        Side              `json:"side"`
	Type        OrderType         `json:"type"`
	Quantity    int64             `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Total       decimal.Decimal   `json:"total"`
	RealizedPnL decimal.Decimal   `json:"realizedPnL"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      TransactionStatus `json:"status"`
}
