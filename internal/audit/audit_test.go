package audit

import (
	"papertrader/internal/engine"
	"papertrader/internal/ledger"
	"papertrader/types"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRecordsOrderAttempts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	trail := NewLog(0, zap.New(core))

	account, err := ledger.OpenAccount("acct-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	e := engine.NewEngine(account, nil, nil)
	e.AddListener(trail)

	e.ExecuteOrder("AAPL", types.SideTypeBuy, 1, decimal.NewFromInt(50))
	e.ExecuteOrder("AAPL", types.SideTypeBuy, 10, decimal.NewFromInt(50))
	e.TrackPortfolioValue(nil)
	require.NoError(t, e.Reset())

	entries := trail.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, ActionAccountReset, entries[0].Action)

	rejected := entries[1]
	assert.Equal(t, ActionOrderRejected, rejected.Action)
	assert.Equal(t, "acct-1", rejected.AccountID)
	assert.Equal(t, string(types.RejectInsufficientFunds), rejected.Details["reason"])
	assert.Equal(t, "10", rejected.Details["quantity"])

	filled := entries[2]
	assert.Equal(t, ActionOrderFilled, filled.Action)
	assert.NotEmpty(t, filled.Details["transaction_id"])
	assert.Equal(t, "Bought 1 AAPL @ $50.00", filled.Details["message"])

	assert.Equal(t, 3, logs.FilterMessage("audit").Len())
	first := logs.FilterMessage("audit").All()[0].ContextMap()
	assert.Equal(t, "ORDER_FILLED", first["action"])
	assert.Equal(t, "AAPL", first["symbol"])
}

func TestLogLimit(t *testing.T) {
	trail := NewLog(2, nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		trail.Record(Entry{Timestamp: base.Add(time.Duration(i) * time.Minute), Action: ActionAccountReset})
	}

	entries := trail.Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Timestamp.Equal(base.Add(4*time.Minute)))
	assert.True(t, entries[1].Timestamp.Equal(base.Add(3*time.Minute)))
}
