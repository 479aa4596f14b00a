package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/stores"
	"github.com/openfroyo/leadflow/pkg/telemetry"
)

func newImportLegacyCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "import-legacy <file>",
		Short: "Import a legacy JSON tracking file",
		Long: `Seed lead records from the JSON tracking file kept by the previous
outreach script ({"email": {"status": ..., "initial_sent_timestamp": ...}}).

Statuses map as follows:
  PENDING             NEW
  INITIAL_EMAIL_SENT  INITIAL_SENT
  FOLLOW_UP_SENT      FOLLOWUP_SENT
  REPLIED             REPLIED

Timestamps are ISO 8601. Timestamps without a UTC offset are read as UTC,
not local time; add an offset to the file first if the old script wrote
local times, or follow-ups will be scheduled relative to the wrong instant.

Leads that already exist are left untouched, so the import can be repeated.`,
		Example: `  leadflow import-legacy lead_status.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open legacy file: %w", err)
			}
			defer f.Close()

			records, rejected, err := stores.ParseLegacy(f)
			if err != nil {
				return err
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

			op := telemetry.StartOperation(a.tel.WithContext(ctx), "import-legacy")
			result, err := stores.ImportLegacy(op.Ctx, store, records, rejected, actor)
			op.End(err)
			if err != nil {
				return err
			}

			logger := op.Logger.Zerolog()
			logger.Info().
				Dur("duration", op.Timer.Duration()).
				Int("imported", len(result.Imported)).
				Int("existing", len(result.Existing)).
				Int("rejected", len(result.Rejected)).
				Msg("Legacy import finished")

			return a.renderer().Import(result)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "who ran the import")

	return cmd
}
