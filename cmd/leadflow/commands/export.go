package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/stores"
)

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all leads as JSON",
		Long: `Write every lead record as a JSON object keyed by normalized email. With
--out the file is replaced atomically; otherwise the document is written to
standard output.`,
		Example: `  leadflow export --out leads.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			doc, err := stores.ExportJSON(ctx, store)
			if err != nil {
				return err
			}

			if out == "" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			if err := stores.WriteJSONAtomic(out, doc); err != nil {
				return err
			}
			a.logger.Info().Str("path", out).Int("leads", len(doc.Leads)).Msg("Export written")
			if jsonOutput {
				return a.renderer().Message("Exported %d leads to %s", len(doc.Leads), out)
			}
			_, err = fmt.Fprintf(os.Stderr, "Exported %d leads to %s\n", len(doc.Leads), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}
