package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReportCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show campaign statistics",
		Long: `Show totals per state, emails sent, replies, the response rate (replies
per initial email) and the daily activity of the last days.`,
		Example: `  # Last week
  leadflow report

  # Last 30 days as JSON
  leadflow report --days 30 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			stats, err := store.CampaignStats(ctx)
			if err != nil {
				return err
			}

			since := time.Now().UTC().AddDate(0, 0, -(days - 1))
			activity, err := store.Activity(ctx, since)
			if err != nil {
				return err
			}

			return a.renderer().Campaign(stats, activity, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "number of days of activity to show")

	return cmd
}
