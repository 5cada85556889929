package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
)

var (
	recommendAssign bool
	recommendActor  string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <booking-id>",
	Short: "Rank technicians and teams for a pending booking",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecommend,
}

func init() {
	recommendCmd.Flags().BoolVar(&recommendAssign, "assign", false, "assign the top candidate")
	recommendCmd.Flags().StringVar(&recommendActor, "actor", "cli", "name recorded in the booking history")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *app.Engine) error {
		rec, err := e.Recommend(ctx, args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd, rec); err != nil {
			return err
		}
		if !recommendAssign {
			return nil
		}
		if rec.NoEligibleCandidate() {
			return fmt.Errorf("booking %s: no eligible candidate", args[0])
		}
		top := rec.Candidates[0]
		_, err = e.AssignCandidate(ctx, args[0], top, recommendActor)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", args[0], top.Key())
		return err
	})
}
