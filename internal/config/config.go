package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PAPERTRADER_"

// Config is the complete application configuration.
type Config struct {
	Account AccountConfig `yaml:"account"`
	Engine  EngineConfig  `yaml:"engine"`
	Quotes  QuotesConfig  `yaml:"quotes"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

// AccountConfig identifies the paper trading account. An empty ID means a
// new account id is generated on first start.
type AccountConfig struct {
	ID              string `yaml:"id"`
	StartingBalance string `yaml:"starting_balance"`
}

type EngineConfig struct {
	MinSampleInterval time.Duration `yaml:"min_sample_interval"`
	RiskFreeRate      string        `yaml:"risk_free_rate"`
}

// QuotesConfig selects where market prices come from. With WebsocketURL set
// the stream feed is used, otherwise the static Prices map.
type QuotesConfig struct {
	PollInterval time.Duration     `yaml:"poll_interval"`
	WebsocketURL string            `yaml:"websocket_url,omitempty"`
	Prices       map[string]string `yaml:"prices,omitempty"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "memory"
	DSN    string `yaml:"dsn,omitempty"`
}

type EventsConfig struct {
	NatsURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix"`
	// Stream makes sure a JetStream stream captures the published subjects.
	Stream bool `yaml:"stream,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartingBalance: "100000",
		},
		Engine: EngineConfig{
			MinSampleInterval: time.Minute,
			RiskFreeRate:      "0",
		},
		Quotes: QuotesConfig{
			PollInterval: 5 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "./papertrader.db",
		},
		Events: EventsConfig{
			SubjectPrefix: "papertrader",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile reads a YAML file on top of the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables that are already set. A missing file
// is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from PAPERTRADER_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(envPrefix + "ACCOUNT_ID"); v != "" {
		c.Account.ID = strings.TrimSpace(v)
	}
	if v := os.Getenv(envPrefix + "STARTING_BALANCE"); v != "" {
		c.Account.StartingBalance = strings.TrimSpace(v)
	}
	if v := os.Getenv(envPrefix + "MIN_SAMPLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMIN_SAMPLE_INTERVAL: %w", envPrefix, err)
		}
		c.Engine.MinSampleInterval = d
	}
	if v := os.Getenv(envPrefix + "RISK_FREE_RATE"); v != "" {
		c.Engine.RiskFreeRate = strings.TrimSpace(v)
	}
	if v := os.Getenv(envPrefix + "POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_INTERVAL: %w", envPrefix, err)
		}
		c.Quotes.PollInterval = d
	}
	if v := os.Getenv(envPrefix + "QUOTES_URL"); v != "" {
		c.Quotes.WebsocketURL = v
	}
	if v := os.Getenv(envPrefix + "STORE_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(envPrefix + "STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(envPrefix + "NATS_URL"); v != "" {
		c.Events.NatsURL = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	balance, err := c.StartingBalance()
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return errors.New("account.starting_balance must not be negative")
	}
	if c.Engine.MinSampleInterval < 0 {
		return errors.New("engine.min_sample_interval must not be negative")
	}
	if _, err := c.RiskFreeRate(); err != nil {
		return err
	}
	if c.Quotes.PollInterval <= 0 {
		return errors.New("quotes.poll_interval must be positive")
	}
	if _, err := c.StaticPrices(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn required for %s", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be 'sqlite', 'postgres' or 'memory', got %q", c.Store.Driver)
	}
	if c.Events.NatsURL != "" && c.Events.SubjectPrefix == "" {
		return errors.New("events.subject_prefix required when events.nats_url is set")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json', got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) StartingBalance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Account.StartingBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account.starting_balance: %w", err)
	}
	return d, nil
}

func (c *Config) RiskFreeRate() (decimal.Decimal, error) {
	if c.Engine.RiskFreeRate == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.Engine.RiskFreeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("engine.risk_free_rate: %w", err)
	}
	return d, nil
}

// StaticPrices parses quotes.prices. Symbols are upper-cased.
func (c *Config) StaticPrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Quotes.Prices))
	for sym, raw := range c.Quotes.Prices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("quotes.prices[%s]: %w", sym, err)
		}
		out[strings.ToUpper(strings.TrimSpace(sym))] = p
	}
	return out, nil
}
