package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/stores"
	"github.com/openfroyo/leadflow/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		maxParallel int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass",
		Long: `Run one pass over all leads: read the source, then take at most one step
per lead (send the initial email, detect a reply, send the follow-up, or
close the lead).

Exit codes:
  0  the pass completed and no lead failed
  1  the pass completed and at least one lead became FAILED
  2  the pass was aborted (configuration, store unavailable, interrupted)`,
		Example: `  # Run a pass
  leadflow run

  # Show what a pass would do without sending anything
  leadflow run --dry-run

  # Limit concurrency
  leadflow run --max-parallel 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp()
			if err != nil {
				return aborted(err)
			}
			defer a.close(ctx)

			if cmd.Flags().Changed("max-parallel") {
				a.cfg.Workflow.MaxParallel = maxParallel
			}
			opts := a.cfg.Options()

			store, err := a.openStore(ctx)
			if err != nil {
				return aborted(err)
			}

			if dryRun {
				return aborted(a.dryRun(ctx, store, opts))
			}
			return a.run(ctx, store, opts)
		},
	}

	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "maximum leads processed concurrently (overrides workflow.max_parallel)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the planned action per lead without sending or writing")

	return cmd
}

func (a *app) run(ctx context.Context, store *stores.SQLiteStore, opts engine.Options) error {
	p, err := a.buildPorts(ctx)
	if err != nil {
		return aborted(err)
	}

	opts.RunID = uuid.New().String()
	started := time.Now().UTC()
	if err := store.CreateRun(ctx, &stores.Run{
		ID:        opts.RunID,
		Status:    stores.RunStatusRunning,
		StartedAt: started,
	}); err != nil {
		return aborted(err)
	}

	ctx, span := a.tel.Tracer.StartCommandSpan(ctx, "run")
	defer span.End()
	span.SetAttributes(telemetry.AttrRunID.String(opts.RunID))

	logger := a.tel.Logger.WithRunID(opts.RunID).Zerolog()
	logger.Info().
		Int("max_parallel", opts.MaxParallel).
		Dur("followup_delay", opts.FollowupDelay).
		Dur("close_after", opts.CloseAfter).
		Msg("Starting run")

	options := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithTracer(a.tel.Tracer.Tracer()),
		engine.WithRecorder(a.tel.Metrics),
	}
	if p.screener != nil {
		options = append(options, engine.WithScreener(p.screener))
	}

	orch, err := engine.NewOrchestrator(store, p.source, p.crafter, p.deliverer, p.replies, opts, options...)
	if err != nil {
		return aborted(err)
	}

	summary, runErr := orch.Run(ctx)

	status := stores.RunStatusCompleted
	switch {
	case runErr != nil:
		status = stores.RunStatusAborted
	case summary.HasFailures():
		status = stores.RunStatusFailedLeads
	}
	span.SetAttributes(telemetry.AttrRunStatus.String(string(status)))

	// The run record is closed even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	summaryJSON, _ := json.Marshal(summary)
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := store.FinishRun(finishCtx, opts.RunID, status, string(summaryJSON), errMsg); err != nil {
		logger.Error().Err(err).Msg("Failed to record run completion")
	}

	a.tel.Metrics.RecordRun(string(status), summary.CompletedAt.Sub(summary.StartedAt), summary.CompletedAt)
	a.recordLeadCounts(finishCtx, store)

	logger.Info().
		Str("status", string(status)).
		Int("processed", summary.Processed).
		Int("initial_sent", summary.InitialSent).
		Int("followups_sent", summary.FollowupsSent).
		Int("replied", summary.Replied).
		Int("closed", summary.Closed).
		Int("failed", summary.Failed).
		Int("pending", summary.Pending).
		Msg("Run finished")

	if err := a.renderer().RunSummary(summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to render summary")
	}

	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return aborted(runErr)
	}
	if summary.HasFailures() {
		return leadsFailed(summary.Failed)
	}
	telemetry.RecordSuccess(span)
	return nil
}

// recordLeadCounts publishes the number of leads per stored state.
func (a *app) recordLeadCounts(ctx context.Context, store *stores.SQLiteStore) {
	records, err := store.ListAll(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to count leads")
		return
	}
	counts := make(map[engine.LeadState]int)
	for _, rec := range records {
		counts[rec.State]++
	}
	a.tel.Metrics.SetLeadCounts(counts)
}

// dryRun prints the planned action per lead. Only the lead source is
// called and nothing is written.
func (a *app) dryRun(ctx context.Context, store *stores.SQLiteStore, opts engine.Options) error {
	source, err := a.newSource(ctx)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, opts.PortTimeout)
	leads, err := source.FetchLeads(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn().Err(err).Msg("Lead source unavailable, planning stored leads only")
		leads = nil
	}

	records, err := store.ListAll(ctx)
	if err != nil {
		return err
	}

	return a.renderer().Plan(engine.Plan(leads, records, time.Now().UTC(), opts))
}
