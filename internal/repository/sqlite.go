package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"papertrader/types"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, state types.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := state.Account.ID
	for _, table := range []string{"positions", "transactions", "equity"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE account_id = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, cash_balance, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash_balance = excluded.cash_balance,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at`,
		id, state.Account.CashBalance.String(), state.RealizedPnL.String(), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	for _, p := range state.Positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (account_id, symbol, quantity, average_cost)
			VALUES (?, ?, ?, ?)`,
			id, p.Symbol, p.Quantity, p.AverageCost.String(),
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", p.Symbol, err)
		}
	}

	// seq counts from the oldest transaction.
	n := len(state.Transactions)
	for i, t := range state.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
			(id, account_id, seq, symbol, side, type, quantity, price, total, realized_pnl, ts, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, id, n-1-i, t.Symbol, string(t.Side), string(t.Type), t.Quantity,
			t.Price.String(), t.Total.String(), t.RealizedPnL.String(), t.Timestamp.UnixNano(), string(t.Status),
		)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for i, snap := range state.EquityCurve {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO equity (account_id, seq, ts, value)
			VALUES (?, ?, ?, ?)`,
			id, i, snap.Timestamp.UnixNano(), snap.Value.String(),
		)
		if err != nil {
			return fmt.Errorf("insert equity sample: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) Load(ctx context.Context) (*types.State, error) {
	var (
		state          types.State
		cash, realized string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cash_balance, realized_pnl FROM accounts
		ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&state.Account.ID, &cash, &realized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if state.Account.CashBalance, err = parseDecimal(cash); err != nil {
		return nil, err
	}
	if state.RealizedPnL, err = parseDecimal(realized); err != nil {
		return nil, err
	}

	id := state.Account.ID
	if state.Positions, err = s.loadPositions(ctx, id); err != nil {
		return nil, err
	}
	if state.Transactions, err = s.loadTransactions(ctx, id); err != nil {
		return nil, err
	}
	if state.EquityCurve, err = s.loadEquity(ctx, id); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SQLite) loadPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, average_cost FROM positions
		WHERE account_id = ? ORDER BY symbol`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	positions := []types.Position{}
	for rows.Next() {
		var (
			p   types.Position
			avg string
		)
		if err := rows.Scan(&p.Symbol, &p.Quantity, &avg); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.AverageCost, err = parseDecimal(avg); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLite) loadTransactions(ctx context.Context, accountID string) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, type, quantity, price, total, realized_pnl, ts, status
		FROM transactions WHERE account_id = ? ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	txs := []types.Transaction{}
	for rows.Next() {
		var (
			t                      types.Transaction
			side, typ, status      string
			price, total, realized string
			ts                     int64
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &typ, &t.Quantity, &price, &total, &realized, &ts, &status); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Side = types.Side(side)
		t.Type = types.OrderType(typ)
		t.Status = types.TransactionStatus(status)
		t.Timestamp = time.Unix(0, ts).UTC()
		if t.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if t.Total, err = parseDecimal(total); err != nil {
			return nil, err
		}
		if t.RealizedPnL, err = parseDecimal(realized); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *SQLite) loadEquity(ctx context.Context, accountID string) ([]types.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, value FROM equity WHERE account_id = ? ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load equity: %w", err)
	}
	defer rows.Close()

	curve := []types.EquitySnapshot{}
	for rows.Next() {
		var (
			ts    int64
			value string
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan equity sample: %w", err)
		}
		v, err := parseDecimal(value)
		if err != nil {
			return nil, err
		}
		curve = append(curve, types.EquitySnapshot{Timestamp: time.Unix(0, ts).UTC(), Value: v})
	}
	return curve, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: decimal %q", ErrCorruptState, s)
	}
	return d, nil
}
