package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/engine"
)

func newStatusCommand() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List leads and their state",
		Long: `List every stored lead. INITIAL_SENT leads whose follow-up delay has
elapsed are shown as FOLLOWUP_DUE.`,
		Example: `  # List all leads
  leadflow status

  # Only leads waiting for a follow-up
  leadflow status --state followup_due`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var filter engine.LeadState
			if state != "" {
				parsed, err := engine.ParseLeadState(state)
				if err != nil {
					return fmt.Errorf("unknown state %q", state)
				}
				filter = parsed
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

			records, err := store.ListAll(ctx)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			delay := a.cfg.Workflow.FollowupDelay
			if filter != "" {
				kept := records[:0]
				for _, rec := range records {
					if rec.DisplayState(now, delay) == filter {
						kept = append(kept, rec)
					}
				}
				records = kept
			}

			return a.renderer().Leads(records, now, delay)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "only show leads in this state (e.g. NEW, FOLLOWUP_DUE, FAILED)")

	return cmd
}
