package cmd

import (
	"context"
	"errors"
	"fmt"
	"papertrader/internal/audit"
	"papertrader/internal/config"
	"papertrader/internal/engine"
	"papertrader/internal/events"
	"papertrader/internal/id"
	"papertrader/internal/ledger"
	"papertrader/internal/logging"
	"papertrader/internal/repository"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const auditLimit = 1000

type options struct {
	configFile string
	envFiles   []string
	logLevel   string
	store      string
	dsn        string
}

// app is the state shared by every subcommand, built before each run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  repository.Store
	engine *engine.Engine
	audit  *audit.Log
	nc     *nats.Conn
}

// Execute runs the CLI with ctx, which should be cancelled on SIGINT.
func Execute(ctx context.Context) error {
	root, a := newRootCmd()
	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRootCmd() (*cobra.Command, *app) {
	opts := &options{}
	a := &app{}

	root := &cobra.Command{
		Use:   "papertrader",
		Short: "A paper trading ledger for simulated stock orders",
		Long: `Papertrader keeps a simulated brokerage account: a cash ledger, a position
book valued at weighted-average cost, a transaction history with realized
P&L and an equity curve sampled from market quotes.

Examples:
  papertrader buy AAPL 10 187.25
  papertrader sell AAPL 5 190
  papertrader holdings
  papertrader value --price AAPL=191.10
  papertrader watch --duration 1h`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context(), opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "path to YAML config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load (default .env)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.store, "store", "", "store driver (sqlite, postgres, memory)")
	pf.StringVar(&opts.dsn, "dsn", "", "store location: sqlite file or postgres URL")

	root.AddCommand(
		newOrderCmd(a, buySide),
		newOrderCmd(a, sellSide),
		newHoldingsCmd(a),
		newHistoryCmd(a),
		newValueCmd(a),
		newReportCmd(a),
		newExportCmd(a),
		newReplayCmd(a),
		newWatchCmd(a),
		newResetCmd(a),
	)
	return root, a
}

func (a *app) open(ctx context.Context, opts *options) error {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return err
	}

	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.LoadFromFile(opts.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.store != "" {
		cfg.Store.Driver = opts.store
	}
	if opts.dsn != "" {
		cfg.Store.DSN = opts.dsn
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	store, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store

	eng, err := a.loadEngine(ctx)
	if err != nil {
		return err
	}
	a.engine = eng

	a.audit = audit.NewLog(auditLimit, logger)
	eng.AddListener(repository.NewSaver(store, eng, logger))
	eng.AddListener(a.audit)

	if cfg.Events.NatsURL != "" {
		pub, nc, err := events.Connect(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		a.nc = nc
		if cfg.Events.Stream {
			if err := events.EnsureStream(ctx, nc, cfg.Events.SubjectPrefix); err != nil {
				return err
			}
		}
		eng.AddListener(pub)
	}
	return nil
}

// loadEngine restores the saved account, or opens a new one with the
// configured starting balance.
func (a *app) loadEngine(ctx context.Context) (*engine.Engine, error) {
	balance, err := a.cfg.StartingBalance()
	if err != nil {
		return nil, err
	}
	pcfg := engine.NewPortfolioConfig(balance, a.cfg.Engine.MinSampleInterval)

	state, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state != nil {
		if a.cfg.Account.ID != "" && a.cfg.Account.ID != state.Account.ID {
			a.logger.Warn("configured account differs from the stored one, using stored",
				zap.String("configured", a.cfg.Account.ID),
				zap.String("stored", state.Account.ID))
		}
		return engine.NewEngineFromState(*state, pcfg, a.logger)
	}

	accountID := a.cfg.Account.ID
	if accountID == "" {
		accountID = id.NewAccountID()
	}
	account, err := ledger.OpenAccount(accountID, balance)
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	eng := engine.NewEngine(account, pcfg, a.logger)
	if err := a.store.Save(ctx, eng.Snapshot()); err != nil {
		return nil, fmt.Errorf("save new account: %w", err)
	}
	a.logger.Info("opened paper trading account",
		zap.String("account", accountID),
		zap.String("balance", balance.String()))
	return eng, nil
}

func (a *app) close() error {
	var errs []error
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
		a.nc = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
