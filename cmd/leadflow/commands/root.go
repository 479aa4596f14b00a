package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// buildVersion is reported as the service version in telemetry.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leadflow",
		Short: "leadflow - lead outreach coordinator",
		Long: `leadflow drives each lead from a source list through a fixed outreach
workflow: an initial email, a reply check, one follow-up after a delay and,
optionally, closing leads that never answered.

Every invocation of "leadflow run" is one idempotent reconciliation pass
over all leads, meant to be scheduled by cron or a systemd timer. State lives
in a local SQLite database, so a crashed or concurrent run never sends the
same email twice.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default \"leadflow.yaml\")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newReopenCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newImportLegacyCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}
