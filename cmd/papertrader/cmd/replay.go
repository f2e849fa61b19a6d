package cmd

import (
	"fmt"
	"io"
	"os"
	"papertrader/internal/engine"
	"papertrader/types"

	"github.com/spf13/cobra"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		quiet     bool
		showAudit bool
	)
	cmd := &cobra.Command{
		Use:   "replay <orders.csv>",
		Short: "Execute a CSV of time-stamped orders against the account",
		Long: `Execute orders from a CSV file with the columns
time,symbol,side,quantity,price (time in RFC3339). Orders run in time order
and each one is stamped with its own time. The equity curve is sampled after
every order using the last fill price per symbol.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			reqs, err := engine.ReadOrdersCSV(f)
			if err != nil {
				return err
			}

			var progress io.Writer = cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}
			summary, err := a.engine.Replay(reqs, progress)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nReplayed %d orders: %d filled, %d rejected\n", len(reqs), summary.Filled, summary.Rejected)
			fmt.Fprintf(out, "Cash %s  realized P&L %s\n", types.FormatUSD(a.engine.Balance()), types.FormatUSD(a.engine.RealizedPnL()))

			if showAudit {
				entries := a.audit.Entries()
				for i := len(entries) - 1; i >= 0; i-- {
					e := entries[i]
					fmt.Fprintf(out, "%s %-14s %s\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Action, e.Details["message"])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().BoolVar(&showAudit, "audit", false, "print every order attempt after the replay")
	return cmd
}
