package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
	"github.com/kilianp07/fieldops/core/model"
	revenuejob "github.com/kilianp07/fieldops/jobs/revenue"
)

var backfillMerge bool

var backfillCmd = &cobra.Command{
	Use:   "backfill <orders.json>",
	Short: "Rebuild daily revenue aggregates from an order export",
	Long: "Rebuild daily revenue aggregates and the all-time product ranking from a JSON array of orders.\n" +
		"With --merge the orders are added to the stored days instead; only merge batches that were never applied.",
	Args: cobra.ExactArgs(1),
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillMerge, "merge", false, "merge into existing aggregates instead of rebuilding")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	var orders []model.Order
	if err := readJSON(args[0], &orders); err != nil {
		return err
	}
	return withEngine(cmd, func(ctx context.Context, e *app.Engine) error {
		var (
			rep revenuejob.Report
			err error
		)
		if backfillMerge {
			rep, err = e.Backfill.Merge(ctx, orders)
		} else {
			rep, err = e.Backfill.Run(ctx, orders)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, rep)
	})
}
