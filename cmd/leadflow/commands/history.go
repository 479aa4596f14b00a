package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <email>",
		Short: "Show the event log of a lead",
		Long: `Show a lead's current record, its state changes (newest first), the
snapshots archived each time it was re-opened and the audited operator
actions on it.`,
		Example: `  leadflow history sam@acme.example`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			rec, err := store.Get(ctx, email)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("no lead with email %s", email)
				}
				return err
			}

			events, err := store.ListEvents(ctx, &rec.Email, limit, 0)
			if err != nil {
				return err
			}
			archived, err := store.ListHistory(ctx, rec.Email)
			if err != nil {
				return err
			}
			audit, err := store.ListAuditEntries(ctx, nil, nil, &rec.Email, limit, 0)
			if err != nil {
				return err
			}

			return a.renderer().History(rec, events, archived, audit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events to show")

	return cmd
}
