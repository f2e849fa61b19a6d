package cmd

import (
	"errors"
	"fmt"
	"papertrader/types"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe positions and history and restore the starting balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset erases all positions and history; pass --yes to confirm")
			}
			if err := a.engine.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s reset to %s\n", a.engine.AccountID(), types.FormatUSD(a.engine.Balance()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
