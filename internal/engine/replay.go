package engine

import (
	"errors"
	"fmt"
	"io"
	"papertrader/types"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// ErrReplayBeforeHistory is returned when a replay would record fills older
// than the account's latest fill or equity sample.
var ErrReplayBeforeHistory = errors.New("replay predates account history")

type ReplaySummary struct {
	Filled   int
	Rejected int
	Results  []types.OrderResult
}

// Replay executes reqs in time order, using each request's time as the
// engine clock. After every order the book is marked with the last fill
// price seen per symbol and offered to the equity curve sampler.
// Progress is drawn on out; pass io.Discard to silence it.
//
// Orders dated before the newest fill or equity sample already on the account
// are refused with ErrReplayBeforeHistory and nothing is executed.
func (e *Engine) Replay(reqs []types.OrderRequest, out io.Writer) (ReplaySummary, error) {
	ordered := append([]types.OrderRequest(nil), reqs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	if len(ordered) > 0 {
		if last, ok := e.lastActivity(); ok && ordered[0].Time.Before(last) {
			return ReplaySummary{}, fmt.Errorf("%w: first order at %s, account history ends at %s",
				ErrReplayBeforeHistory, ordered[0].Time.UTC().Format(time.RFC3339), last.Format(time.RFC3339))
		}
	}

	bar := initProgressBar(len(ordered), out)
	lastPrices := make(map[string]decimal.Decimal)
	summary := ReplaySummary{Results: make([]types.OrderResult, 0, len(ordered))}

	for _, req := range ordered {
		at := req.Time
		clock := func() time.Time { return at }

		res := e.execute(clock, order{symbol: req.Symbol, side: req.Side, quantity: req.Quantity, price: req.Price})
		if res.Success {
			summary.Filled++
			lastPrices[res.Symbol] = res.Price
		} else {
			summary.Rejected++
		}
		summary.Results = append(summary.Results, res)

		e.track(clock, lastPrices)

		if err := bar.Add(1); err != nil {
			return summary, err
		}
	}
	return summary, bar.Finish()
}

// lastActivity returns the time of the newest fill or equity sample.
func (e *Engine) lastActivity() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var last time.Time
	if n := len(e.fills); n > 0 {
		last = e.fills[n-1].Timestamp
	}
	if n := len(e.equityCurve); n > 0 && e.equityCurve[n-1].Timestamp.After(last) {
		last = e.equityCurve[n-1].Timestamp
	}
	return last, !last.IsZero()
}

func initProgressBar(maxTicks int, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Replaying orders..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
