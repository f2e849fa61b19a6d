package types

type Side string

type OrderType string

type TransactionStatus string

// RejectReason identifies why an order was not filled. It is empty on success.
type RejectReason string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"

	TypeMarket OrderType = "MARKET"

	StatusFilled   TransactionStatus = "FILLED"
	StatusRejected TransactionStatus = "REJECTED"

	RejectInvalidQuantity    RejectReason = "INVALID_QUANTITY"
	RejectInvalidSymbol      RejectReason = "INVALID_SYMBOL"
	RejectInvalidPrice       RejectReason = "INVALID_PRICE"
	RejectInvalidSide        RejectReason = "INVALID_SIDE"
	RejectInsufficientFunds  RejectReason = "INSUFFICIENT_FUNDS"
	RejectInsufficientShares RejectReason = "INSUFFICIENT_SHARES"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(NormalizeSymbol(s)) {
	case SideTypeBuy:
		return SideTypeBuy, true
	case SideTypeSell:
		return SideTypeSell, true
	}
	return "", false
}

func (s Side) Valid() bool {
	return s == SideTypeBuy || s == SideTypeSell
}
