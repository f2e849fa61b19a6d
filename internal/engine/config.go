package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMinSampleInterval = time.Minute
)

var DefaultInitialCash = decimal.NewFromInt(100000)

type PortfolioConfig struct {
	initialCash       decimal.Decimal
	minSampleInterval time.Duration
}

// NewPortfolioConfig returns the engine settings. initialCash is the balance
// Reset restores; minSampleInterval is the equity curve debounce window.
func NewPortfolioConfig(initialCash decimal.Decimal, minSampleInterval time.Duration) *PortfolioConfig {
	if minSampleInterval < 0 {
		minSampleInterval = 0
	}
	return &PortfolioConfig{
		initialCash:       initialCash,
		minSampleInterval: minSampleInterval,
	}
}

func DefaultPortfolioConfig() *PortfolioConfig {
	return NewPortfolioConfig(DefaultInitialCash, DefaultMinSampleInterval)
}

func (c *PortfolioConfig) InitialCash() decimal.Decimal      { return c.initialCash }
func (c *PortfolioConfig) MinSampleInterval() time.Duration { return c.minSampleInterval }
