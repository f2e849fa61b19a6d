package cmd

import (
	"context"
	"fmt"
	"papertrader/internal/quotes"
	"papertrader/types"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll quotes and record the portfolio value until interrupted",
		Long: `Poll the configured quote source every quotes.poll_interval and feed the
prices to the equity curve sampler, which keeps at most one sample per
engine.min_sample_interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			src, stop, err := a.quoteSource(ctx)
			if err != nil {
				return err
			}
			defer stop()

			a.logger.Info("watching portfolio value",
				zap.Duration("poll_interval", a.cfg.Quotes.PollInterval),
				zap.Duration("min_sample_interval", a.engine.Config().MinSampleInterval()))

			before := len(a.engine.EquityCurve())
			poller := quotes.NewPoller(src, a.engine, a.cfg.Quotes.PollInterval, a.logger)
			if err := poller.Run(ctx); err != nil {
				return err
			}

			curve := a.engine.EquityCurve()
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d samples", len(curve)-before)
			if len(curve) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", last value %s", types.FormatUSD(curve[len(curve)-1].Value))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	return cmd
}
