package commands

import (
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load and validate the configuration, then build every configured adapter
without contacting remote services.

This command checks:
  - YAML syntax and field constraints
  - Environment overrides
  - Template and Starlark content
  - Screening policies (OPA/rego)
  - Google credentials, when a Google adapter is selected`,
		Example: `  # Validate the default configuration
  leadflow validate

  # Validate a specific file
  leadflow validate --config ./staging.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp()
			if err != nil {
				return aborted(err)
			}
			defer a.close(ctx)

			a.logger.Info().
				Str("source", a.cfg.Source.Type).
				Str("content", a.cfg.Content.Type).
				Str("delivery", a.cfg.Delivery.Type).
				Str("replies", a.cfg.Replies.Type).
				Bool("policy", a.cfg.Policy.Enabled).
				Msg("Validating configuration")

			if _, err := a.buildPorts(ctx); err != nil {
				return aborted(err)
			}

			return a.renderer().Message("Configuration is valid")
		},
	}

	return cmd
}
