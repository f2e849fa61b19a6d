package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	balance, err := cfg.StartingBalance()
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, time.Minute, cfg.Engine.MinSampleInterval)
	assert.Equal(t, 5*time.Second, cfg.Quotes.PollInterval)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papertrader.yaml")
	data := `
account:
  id: acct-42
  starting_balance: "2500.50"
engine:
  min_sample_interval: 30s
quotes:
  poll_interval: 2s
  prices:
    aapl: "187.25"
store:
  driver: memory
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "acct-42", cfg.Account.ID)
	assert.Equal(t, 30*time.Second, cfg.Engine.MinSampleInterval)
	assert.Equal(t, 2*time.Second, cfg.Quotes.PollInterval)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, "papertrader", cfg.Events.SubjectPrefix)

	prices, err := cfg.StaticPrices()
	require.NoError(t, err)
	assert.True(t, prices["AAPL"].Equal(decimal.RequireFromString("187.25")))
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: mongo\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "store.driver")
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Account.ID = "acct-1"
	cfg.Quotes.Prices = map[string]string{"MSFT": "410"}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad balance", func(c *Config) { c.Account.StartingBalance = "lots" }, "account.starting_balance"},
		{"negative balance", func(c *Config) { c.Account.StartingBalance = "-1" }, "account.starting_balance"},
		{"negative interval", func(c *Config) { c.Engine.MinSampleInterval = -time.Second }, "engine.min_sample_interval"},
		{"bad risk free rate", func(c *Config) { c.Engine.RiskFreeRate = "x" }, "engine.risk_free_rate"},
		{"zero poll", func(c *Config) { c.Quotes.PollInterval = 0 }, "quotes.poll_interval"},
		{"bad price", func(c *Config) { c.Quotes.Prices = map[string]string{"AAPL": "?"} }, "quotes.prices"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver, c.Store.DSN = "postgres", "" }, "store.dsn"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "csv" }, "store.driver"},
		{"nats without prefix", func(c *Config) {
			c.Events.NatsURL = "nats://localhost:4222"
			c.Events.SubjectPrefix = ""
		}, "events.subject_prefix"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PAPERTRADER_ACCOUNT_ID", "acct-env")
	t.Setenv("PAPERTRADER_STARTING_BALANCE", "500")
	t.Setenv("PAPERTRADER_MIN_SAMPLE_INTERVAL", "90s")
	t.Setenv("PAPERTRADER_STORE_DRIVER", "Postgres")
	t.Setenv("PAPERTRADER_STORE_DSN", "postgres://localhost/papertrader")
	t.Setenv("PAPERTRADER_NATS_URL", "nats://localhost:4222")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "acct-env", cfg.Account.ID)
	assert.Equal(t, "500", cfg.Account.StartingBalance)
	assert.Equal(t, 90*time.Second, cfg.Engine.MinSampleInterval)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/papertrader", cfg.Store.DSN)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NatsURL)
}

func TestApplyEnvBadDuration(t *testing.T) {
	t.Setenv("PAPERTRADER_POLL_INTERVAL", "soon")
	assert.ErrorContains(t, Default().ApplyEnv(), "PAPERTRADER_POLL_INTERVAL")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PAPERTRADER_LOG_LEVEL=debug\nPAPERTRADER_ACCOUNT_ID=from-file\n"), 0o644))

	// already-set variables win over the file
	t.Setenv("PAPERTRADER_ACCOUNT_ID", "from-shell")
	t.Setenv("PAPERTRADER_LOG_LEVEL", "")
	os.Unsetenv("PAPERTRADER_LOG_LEVEL")

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "absent.env")))

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-shell", cfg.Account.ID)
}
