package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
)

var settleCmd = &cobra.Command{
	Use:   "settle <booking-id>",
	Short: "Compute commission and payout split of a completed booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *app.Engine) error {
			s, err := e.Settle(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

func init() {
	rootCmd.AddCommand(settleCmd)
}
