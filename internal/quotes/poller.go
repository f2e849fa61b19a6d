package quotes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPollInterval = 5 * time.Second

// Tracker receives price snapshots; *engine.Engine satisfies it.
type Tracker interface {
	TrackPortfolioValue(prices map[string]decimal.Decimal)
}

// Poller feeds quotes from a Source into a Tracker on a fixed interval.
type Poller struct {
	source   Source
	tracker  Tracker
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(source Source, tracker Tracker, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{source: source, tracker: tracker, interval: interval, logger: logger}
}

// Run polls once immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	prices, err := p.source.Quotes(ctx)
	if err != nil {
		p.logger.Warn("quote fetch failed, skipping sample", zap.Error(err))
		return
	}
	p.tracker.TrackPortfolioValue(prices)
}
