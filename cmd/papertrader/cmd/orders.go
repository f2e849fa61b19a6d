package cmd

import (
	"fmt"
	"papertrader/types"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	buySide  = types.SideTypeBuy
	sellSide = types.SideTypeSell
)

func newOrderCmd(a *app, side types.Side) *cobra.Command {
	verb := strings.ToLower(string(side))
	return &cobra.Command{
		Use:   verb + " <symbol> <quantity> <price>",
		Short: fmt.Sprintf("Place a market %s order", verb),
		Long: fmt.Sprintf(`Place a market %s order that fills completely at the given price or is
rejected without changing the account.

Example:
  papertrader %s AAPL 10 187.25`, verb, verb),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("quantity %q: must be a whole number", args[1])
			}
			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("price %q: %w", args[2], err)
			}

			res := a.engine.ExecuteOrder(args[0], side, qty, price)
			if !res.Success {
				return fmt.Errorf("order rejected (%s): %s", res.Reason, res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)

			prices, err := a.staticPrices()
			if err != nil {
				return err
			}
			prices[res.Symbol] = res.Price
			a.engine.TrackPortfolioValue(prices)
			return nil
		},
	}
}
