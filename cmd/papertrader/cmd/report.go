package cmd

import (
	"errors"
	"fmt"
	"io"
	"papertrader/internal/engine"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var riskFree string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print performance metrics from fills and the equity curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := a.cfg.RiskFreeRate()
			if err != nil {
				return err
			}
			if riskFree != "" {
				if rf, err = decimal.NewFromString(riskFree); err != nil {
					return fmt.Errorf("risk-free rate %q: %w", riskFree, err)
				}
			}
			engine.PrintReport(cmd.OutOrStdout(), a.engine.Report(rf))
			return nil
		},
	}
	cmd.Flags().StringVar(&riskFree, "risk-free", "", "annual risk-free rate for the Sharpe ratio, e.g. 0.03")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var transactionsPath, equityPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions and the equity curve as CSV",
		Long: `Write the transaction history and/or the equity curve as CSV files.
Use "-" to write to stdout.

Example:
  papertrader export --transactions fills.csv --equity equity.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transactionsPath == "" && equityPath == "" {
				return errors.New("nothing to export: set --transactions and/or --equity")
			}
			out := cmd.OutOrStdout()
			if transactionsPath != "" {
				txs := a.engine.Transactions()
				if err := writeCSV(out, transactionsPath, func(w io.Writer) error {
					return engine.WriteTransactionsCSV(w, txs)
				}); err != nil {
					return fmt.Errorf("export transactions: %w", err)
				}
			}
			if equityPath != "" {
				curve := a.engine.EquityCurve()
				if err := writeCSV(out, equityPath, func(w io.Writer) error {
					return engine.WriteEquityCSV(w, curve)
				}); err != nil {
					return fmt.Errorf("export equity: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&transactionsPath, "transactions", "t", "", "transactions CSV path")
	cmd.Flags().StringVarP(&equityPath, "equity", "e", "", "equity curve CSV path")
	return cmd
}

func writeCSV(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	return engine.WriteCSVFile(path, write)
}
