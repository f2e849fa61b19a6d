package repository

import (
	"context"
	"errors"
	"fmt"
	"papertrader/types"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of *pgxpool.Pool the store needs.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Database is the Postgres store. NUMERIC columns map to decimal.Decimal.
type Database struct {
	db   dbtx
	conn *pgxpool.Pool
}

// NewDatabase creates a new Database instance, verifies connectivity and
// creates the schema.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Database{db: conn, conn: conn}, nil
}

func (d *Database) Save(ctx context.Context, state types.State) error {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	id := state.Account.ID
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, cash_balance, realized_pnl, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			cash_balance = EXCLUDED.cash_balance,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_at = EXCLUDED.updated_at`,
		id, state.Account.CashBalance, state.RealizedPnL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	for _, table := range []string{"positions", "transactions", "equity"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE account_id = $1", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for _, p := range state.Positions {
		batch.Queue(`
			INSERT INTO positions (account_id, symbol, quantity, average_cost)
			VALUES ($1, $2, $3, $4)`,
			id, p.Symbol, p.Quantity, p.AverageCost)
	}
	n := len(state.Transactions)
	for i, t := range state.Transactions {
		batch.Queue(`
			INSERT INTO transactions
			(id, account_id, seq, symbol, side, type, quantity, price, total, realized_pnl, ts, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			t.ID, id, n-1-i, t.Symbol, string(t.Side), string(t.Type), t.Quantity,
			t.Price, t.Total, t.RealizedPnL, t.Timestamp, string(t.Status))
	}
	for i, snap := range state.EquityCurve {
		batch.Queue(`
			INSERT INTO equity (account_id, seq, ts, value)
			VALUES ($1, $2, $3, $4)`,
			id, i, snap.Timestamp, snap.Value)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert state rows: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (d *Database) Load(ctx context.Context) (*types.State, error) {
	var state types.State
	err := d.db.QueryRow(ctx, `
		SELECT id, cash_balance, realized_pnl FROM accounts
		ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&state.Account.ID, &state.Account.CashBalance, &state.RealizedPnL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	id := state.Account.ID
	if state.Positions, err = d.loadPositions(ctx, id); err != nil {
		return nil, err
	}
	if state.Transactions, err = d.loadTransactions(ctx, id); err != nil {
		return nil, err
	}
	if state.EquityCurve, err = d.loadEquity(ctx, id); err != nil {
		return nil, err
	}
	return &state, nil
}

func (d *Database) loadPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	rows, err := d.db.Query(ctx, `
		SELECT symbol, quantity, average_cost FROM positions
		WHERE account_id = $1 ORDER BY symbol`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	positions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Position, error) {
		var p types.Position
		err := row.Scan(&p.Symbol, &p.Quantity, &p.AverageCost)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan positions: %w", err)
	}
	return positions, nil
}

func (d *Database) loadTransactions(ctx context.Context, accountID string) ([]types.Transaction, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, symbol, side, type, quantity, price, total, realized_pnl, ts, status
		FROM transactions WHERE account_id = $1 ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Transaction, error) {
		var (
			t                 types.Transaction
			side, typ, status string
		)
		err := row.Scan(&t.ID, &t.Symbol, &side, &typ, &t.Quantity, &t.Price, &t.Total, &t.RealizedPnL, &t.Timestamp, &status)
		t.Side = types.Side(side)
		t.Type = types.OrderType(typ)
		t.Status = types.TransactionStatus(status)
		t.Timestamp = t.Timestamp.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return txs, nil
}

func (d *Database) loadEquity(ctx context.Context, accountID string) ([]types.EquitySnapshot, error) {
	rows, err := d.db.Query(ctx, `
		SELECT ts, value FROM equity WHERE account_id = $1 ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("load equity: %w", err)
	}
	curve, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.EquitySnapshot, error) {
		var snap types.EquitySnapshot
		err := row.Scan(&snap.Timestamp, &snap.Value)
		snap.Timestamp = snap.Timestamp.UTC()
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan equity: %w", err)
	}
	return curve, nil
}

func (d *Database) Close() error {
	if d.conn != nil {
		d.conn.Close()
	}
	return nil
}
