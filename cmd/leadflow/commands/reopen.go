package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/telemetry"
)

func newReopenCommand() *cobra.Command {
	var (
		reason string
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "reopen <email>",
		Short: "Send a FAILED or SKIPPED lead back to NEW",
		Long: `Re-open a lead that ended in FAILED or SKIPPED, for example after its
address was corrected at the source. The previous record is archived and
shown by "leadflow history"; the next run treats the lead as NEW.`,
		Example: `  leadflow reopen sam@acme.example --reason "address fixed in sheet"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email := args[0]

			if reason == "" {
				return fmt.Errorf("--reason is required")
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

			op := telemetry.StartOperation(a.tel.WithContext(ctx), "reopen", telemetry.AttrLeadEmail.String(email))
			rec, err := store.Reopen(op.Ctx, email, actor, reason)
			op.End(err)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("no lead with email %s", email)
				}
				return err
			}

			logger := op.Logger.Zerolog()
			logger.Info().
				Str("email", rec.Email).
				Str("actor", actor).
				Str("reason", reason).
				Int("reopen_count", rec.ReopenCount).
				Msg("Lead re-opened")

			return a.renderer().Message("Re-opened %s (now %s)", rec.Email, rec.State)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the lead is re-opened (required)")
	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "who re-opened the lead")

	return cmd
}
