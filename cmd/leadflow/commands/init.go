package commands

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/config"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a leadflow workspace",
		Long: `Initialize a workspace: write a default configuration file (unless one
exists), create the data directory and create and migrate the database.`,
		Example: `  # Initialize in the current directory
  leadflow init

  # Initialize with a custom config path
  leadflow init --config /etc/leadflow/leadflow.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := configPath
			if path == "" {
				path = config.DefaultPath
			}

			created := true
			if err := config.WriteDefault(path); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return err
				}
				created = false
			}

			log.Info().
				Str("config", path).
				Bool("created", created).
				Msg("Initializing workspace")

			configPath = path
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.HealthCheck(ctx); err != nil {
				return err
			}

			r := a.renderer()
			if created {
				if err := r.Message("Created configuration %s", path); err != nil {
					return err
				}
			}
			return r.Message("Workspace ready: database %s", a.cfg.DatabasePath())
		},
	}

	return cmd
}
