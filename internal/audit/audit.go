// Package audit keeps a trail of every order attempt and account change.
package audit

import (
	"fmt"
	"papertrader/internal/engine"
	"papertrader/types"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Action string

const (
	ActionOrderFilled   Action = "ORDER_FILLED"
	ActionOrderRejected Action = "ORDER_REJECTED"
	ActionAccountReset  Action = "ACCOUNT_RESET"
)

type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    Action            `json:"action"`
	AccountID string            `json:"account_id"`
	Details   map[string]string `json:"details"`
}

// Log is an in-memory, bounded audit trail. Equity samples are not audited.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	logger  *zap.Logger
}

// NewLog keeps at most limit entries, dropping the oldest; limit <= 0 keeps all.
func NewLog(limit int, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{limit: limit, logger: logger.Named("audit")}
}

func (l *Log) OnEvent(ev engine.Event) {
	var entry Entry
	switch ev.Kind {
	case engine.EventOrder:
		if ev.Order == nil {
			return
		}
		entry = orderEntry(ev.Time, ev.AccountID, *ev.Order)
	case engine.EventReset:
		entry = Entry{Timestamp: ev.Time, Action: ActionAccountReset, AccountID: ev.AccountID, Details: map[string]string{}}
	default:
		return
	}
	l.Record(entry)
}

func (l *Log) Record(entry Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-l.limit:]...)
	}
	l.mu.Unlock()

	fields := []zap.Field{
		zap.String("action", string(entry.Action)),
		zap.String("account", entry.AccountID),
		zap.Time("time", entry.Timestamp),
	}
	for k, v := range entry.Details {
		fields = append(fields, zap.String(k, v))
	}
	l.logger.Info("audit", fields...)
}

// Entries returns the trail, most recent first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

func orderEntry(ts time.Time, accountID string, res types.OrderResult) Entry {
	details := map[string]string{
		"symbol":   res.Symbol,
		"side":     string(res.Side),
		"quantity": fmt.Sprint(res.Quantity),
		"price":    res.Price.String(),
		"message":  res.Message,
	}
	action := ActionOrderFilled
	if res.Success {
		details["transaction_id"] = res.Transaction.ID
	} else {
		action = ActionOrderRejected
		details["reason"] = string(res.Reason)
	}
	return Entry{Timestamp: ts, Action: action, AccountID: accountID, Details: details}
}
