package commands

import (
	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs or show one",
		Long: `List the recorded invocations of "leadflow run", newest first, with their
status and counts. With a run id, show that run's full summary. Runs that
were interrupted before finishing stay in the "running" status.`,
		Example: `  # Recent runs
  leadflow runs

  # One run as JSON
  leadflow runs 5f0c2a9e-3d1b-4c8e-9a57-2b6f1e0d4c3a --json`,
		Args: cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return a.renderer().Run(run)
			}

			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			return a.renderer().Runs(runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
