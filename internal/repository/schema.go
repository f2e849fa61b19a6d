package repository

// sqliteSchema stores decimals as TEXT to keep them exact and timestamps as
// unix nanoseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	cash_balance TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	average_cost TEXT NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price TEXT NOT NULL,
	total TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	ts INTEGER NOT NULL,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_seq ON transactions(account_id, seq);

CREATE TABLE IF NOT EXISTS equity (
	account_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	ts INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (account_id, seq)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	cash_balance NUMERIC NOT NULL,
	realized_pnl NUMERIC NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	symbol TEXT NOT NULL,
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	average_cost NUMERIC NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	price NUMERIC NOT NULL,
	total NUMERIC NOT NULL,
	realized_pnl NUMERIC NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_seq ON transactions(account_id, seq);

CREATE TABLE IF NOT EXISTS equity (
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	value NUMERIC NOT NULL,
	PRIMARY KEY (account_id, seq)
);
`
