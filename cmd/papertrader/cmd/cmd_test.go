package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()

	root, a := newRootCmd()
	defer a.close()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--store", "sqlite", "--dsn", dsn, "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOrderLifecycle(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	out, err := runCLI(t, dsn, "buy", "aapl", "10", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Bought 10 AAPL @ $100.00")

	out, err = runCLI(t, dsn, "buy", "AAPL", "10", "200")
	require.NoError(t, err)

	out, err = runCLI(t, dsn, "holdings")
	require.NoError(t, err)
	assert.Contains(t, out, "cash $97,000.00")
	assert.Regexp(t, `AAPL\s+20\s+\$150\.00\s+\$3,000\.00`, out)

	out, err = runCLI(t, dsn, "sell", "AAPL", "20", "175")
	require.NoError(t, err)
	assert.Contains(t, out, "Sold 20 AAPL (P&L: $500.00)")

	out, err = runCLI(t, dsn, "holdings")
	require.NoError(t, err)
	assert.Contains(t, out, "cash $100,500.00")
	assert.Contains(t, out, "No open positions.")

	out, err = runCLI(t, dsn, "history", "-n", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "SELL")
	assert.Contains(t, lines[1], "$500.00")
	assert.Contains(t, lines[2], "BUY")
}

func TestRejectedOrderFails(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	_, err := runCLI(t, dsn, "sell", "AAPL", "1", "100")
	assert.ErrorContains(t, err, "INSUFFICIENT_SHARES")

	_, err = runCLI(t, dsn, "buy", "AAPL", "1000", "1000")
	assert.ErrorContains(t, err, "INSUFFICIENT_FUNDS")

	_, err = runCLI(t, dsn, "buy", "AAPL", "1.5", "10")
	assert.ErrorContains(t, err, "whole number")

	out, err := runCLI(t, dsn, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions.")
}

func TestValueUsesPriceOverrides(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCLI(t, dsn, "buy", "AAPL", "10", "100")
	require.NoError(t, err)
	_, err = runCLI(t, dsn, "buy", "MSFT", "1", "400")
	require.NoError(t, err)

	out, err := runCLI(t, dsn, "value", "--price", "aapl=110")
	require.NoError(t, err)
	assert.Regexp(t, `Holdings\s+\$1,500\.00`, out)
	assert.Regexp(t, `Total value\s+\$100,100\.00`, out)
	assert.Regexp(t, `Unrealized P&L\s+\$100\.00`, out)
	assert.Contains(t, out, "$400.00*")
	assert.Contains(t, out, "no quote, valued at average cost")
}

func TestReplayReportAndExport(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cli.db")
	orders := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(orders, []byte(`time,symbol,side,quantity,price
2025-01-02T14:30:00Z,AAPL,buy,10,100
2025-01-03T14:30:00Z,AAPL,sell,5,90
2025-01-04T14:30:00Z,AAPL,sell,5,130
2025-01-05T14:30:00Z,AAPL,sell,5,130
`), 0o644))

	out, err := runCLI(t, dsn, "replay", "--quiet", "--audit", orders)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 4 orders: 3 filled, 1 rejected")
	assert.Contains(t, out, "ORDER_REJECTED")

	out, err = runCLI(t, dsn, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Closed Trades:         2")
	assert.Contains(t, out, "Net Realized Profit:   $100.00")

	txPath := filepath.Join(dir, "fills.csv")
	out, err = runCLI(t, dsn, "export", "--transactions", txPath, "--equity", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "timestamp,value\n"))

	data, err := os.ReadFile(txPath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))

	_, err = runCLI(t, dsn, "export")
	assert.ErrorContains(t, err, "nothing to export")
}

func TestReplayTwiceIsRefused(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cli.db")
	orders := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(orders, []byte(`time,symbol,side,quantity,price
2025-01-02T14:30:00Z,AAPL,buy,10,100
2025-01-03T14:30:00Z,AAPL,sell,5,90
`), 0o644))

	_, err := runCLI(t, dsn, "replay", "--quiet", orders)
	require.NoError(t, err)

	_, err = runCLI(t, dsn, "replay", "--quiet", orders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay predates account history")

	out, err := runCLI(t, dsn, "history")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "SELL"))
}

func TestResetRequiresConfirmation(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCLI(t, dsn, "buy", "AAPL", "10", "100")
	require.NoError(t, err)

	_, err = runCLI(t, dsn, "reset")
	assert.ErrorContains(t, err, "--yes")

	out, err := runCLI(t, dsn, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "reset to $100,000.00")

	out, err = runCLI(t, dsn, "holdings")
	require.NoError(t, err)
	assert.Contains(t, out, "No open positions.")
}

func TestWatchStopsAfterDuration(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCLI(t, dsn, "buy", "AAPL", "10", "100")
	require.NoError(t, err)

	out, err := runCLI(t, dsn, "watch", "--duration", "50ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded")
}
