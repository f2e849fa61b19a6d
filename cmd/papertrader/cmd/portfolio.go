package cmd

import (
	"context"
	"fmt"
	"io"
	"papertrader/internal/engine"
	"papertrader/internal/quotes"
	"papertrader/types"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newHoldingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "List open positions at average cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHoldings(cmd.OutOrStdout(), a.engine.AccountID(), a.engine)
		},
	}
}

func printHoldings(out io.Writer, accountID string, api engine.PortfolioApi) error {
	positions := api.Positions()
	fmt.Fprintf(out, "Account %s  cash %s\n", accountID, types.FormatUSD(api.Balance()))
	if len(positions) == 0 {
		fmt.Fprintln(out, "No open positions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG COST\tCOST BASIS")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Symbol, p.Quantity, types.FormatUSD(p.AverageCost), types.FormatUSD(p.CostBasis()))
	}
	return tw.Flush()
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show filled transactions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			txs := a.engine.Transactions()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSIDE\tSYMBOL\tQTY\tPRICE\tTOTAL\tP&L\tID")
			for _, tx := range txs {
				pnl := "-"
				if tx.Side == types.SideTypeSell {
					pnl = types.FormatUSD(tx.RealizedPnL)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					tx.Timestamp.Format(time.DateTime), tx.Side, tx.Symbol, tx.Quantity,
					types.FormatUSD(tx.Price), types.FormatUSD(tx.Total), pnl, tx.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n transactions")
	return cmd
}

func newValueCmd(a *app) *cobra.Command {
	var (
		overrides map[string]string
		wait      time.Duration
		sample    bool
	)
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Mark the portfolio to market",
		Long: `Value every position at the latest quote (falling back to average cost
when a symbol has none) and print cash, holdings and P&L.

Example:
  papertrader value --price AAPL=191.10 --price MSFT=415`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prices, err := a.currentPrices(cmd.Context(), wait)
			if err != nil {
				return err
			}
			for sym, raw := range overrides {
				p, err := decimal.NewFromString(raw)
				if err != nil {
					return fmt.Errorf("price for %s: %w", sym, err)
				}
				prices[types.NormalizeSymbol(sym)] = p
			}

			printValuation(cmd.OutOrStdout(), a.engine.Valuation(prices))
			if sample {
				a.engine.TrackPortfolioValue(prices)
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&overrides, "price", nil, "quote override SYMBOL=PRICE (repeatable)")
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to wait for the first streamed quotes")
	cmd.Flags().BoolVar(&sample, "sample", false, "also record the value on the equity curve")
	return cmd
}

func printValuation(out io.Writer, v types.PortfolioView) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(v.Positions) > 0 {
		fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG COST\tLAST\tMARKET VALUE\tUNREALIZED\t%")
		for _, p := range v.Positions {
			last := types.FormatUSD(p.LastPrice)
			if !p.Priced {
				last += "*"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				p.Symbol, p.Quantity, types.FormatUSD(p.AverageCost), last,
				types.FormatUSD(p.MarketValue), types.FormatUSD(p.UnrealizedPnL), p.UnrealizedPct.StringFixed(2))
		}
		fmt.Fprintln(tw, "\t\t\t\t\t\t")
	}
	fmt.Fprintf(tw, "Cash\t%s\n", types.FormatUSD(v.Cash))
	fmt.Fprintf(tw, "Holdings\t%s\n", types.FormatUSD(v.HoldingsValue))
	fmt.Fprintf(tw, "Total value\t%s\n", types.FormatUSD(v.TotalValue))
	fmt.Fprintf(tw, "Realized P&L\t%s\n", types.FormatUSD(v.RealizedPnL))
	fmt.Fprintf(tw, "Unrealized P&L\t%s\n", types.FormatUSD(v.UnrealizedPnL))
	fmt.Fprintf(tw, "Total P&L\t%s\n", types.FormatUSD(v.TotalPnL))
	tw.Flush()
	for _, p := range v.Positions {
		if !p.Priced {
			fmt.Fprintln(out, "* no quote, valued at average cost")
			break
		}
	}
}

func (a *app) staticPrices() (map[string]decimal.Decimal, error) {
	return a.cfg.StaticPrices()
}

// quoteSource returns the configured feed. The stop func must be called
// when done.
func (a *app) quoteSource(ctx context.Context) (quotes.Source, func(), error) {
	if url := a.cfg.Quotes.WebsocketURL; url != "" {
		var symbols []string
		for _, p := range a.engine.Positions() {
			symbols = append(symbols, p.Symbol)
		}
		s := quotes.NewStream(url, symbols, a.logger)
		if err := s.Start(ctx); err != nil {
			return nil, nil, err
		}
		return s, s.Stop, nil
	}
	prices, err := a.staticPrices()
	if err != nil {
		return nil, nil, err
	}
	return quotes.NewStatic(prices), func() {}, nil
}

// currentPrices takes one reading from the quote source, giving a stream up
// to wait to deliver its first update.
func (a *app) currentPrices(ctx context.Context, wait time.Duration) (map[string]decimal.Decimal, error) {
	src, stop, err := a.quoteSource(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	if s, ok := src.(*quotes.Stream); ok {
		deadline := time.Now().Add(wait)
		for s.UpdatedAt().IsZero() && time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	return src.Quotes(ctx)
}
