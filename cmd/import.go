package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
)

var importActor string

var importCmd = &cobra.Command{
	Use:   "import <seed.json>",
	Short: "Load technicians, teams, bookings and pricing from a JSON seed",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importActor, "actor", "import", "name recorded as the pricing author")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var seed app.Seed
	if err := readJSON(args[0], &seed); err != nil {
		return err
	}
	return withEngine(cmd, func(ctx context.Context, e *app.Engine) error {
		rep, err := e.Import(ctx, seed, importActor)
		if err != nil {
			return err
		}
		return printJSON(cmd, rep)
	})
}
