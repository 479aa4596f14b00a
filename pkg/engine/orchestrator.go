package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Port names used in logs, spans and metrics.
const (
	PortSource   = "lead_source"
	PortContent  = "content"
	PortDelivery = "delivery"
	PortReplies  = "reply_signal"
	PortScreen   = "screening"
)

// Options are the per-invocation workflow settings. They are fixed for the
// duration of a Run.
type Options struct {
	// FollowupDelay is the wait after the initial email before a follow-up is due.
	FollowupDelay time.Duration

	// CloseAfter is the observation window after the follow-up before a lead
	// is closed. Zero disables closing.
	CloseAfter time.Duration

	// MaxParallel bounds the number of leads processed concurrently.
	MaxParallel int

	// PortTimeout bounds every individual port call.
	PortTimeout time.Duration

	// MaxConsecutiveErrors moves a lead to FAILED after this many consecutive
	// retryable dispatch failures. Zero disables escalation.
	MaxConsecutiveErrors int

	// ClaimTTL is how long a dispatch claim is honoured before its outcome is
	// considered unknown.
	ClaimTTL time.Duration

	// RunID identifies the invocation. Generated when empty.
	RunID string
}

// DefaultOptions returns the default workflow settings.
func DefaultOptions() Options {
	return Options{
		FollowupDelay: DefaultFollowupDelay,
		CloseAfter:    0,
		MaxParallel:   4,
		PortTimeout:   30 * time.Second,
		ClaimTTL:      time.Hour,
	}
}

// Orchestrator performs one reconciliation pass over all leads per Run.
type Orchestrator struct {
	store     Store
	source    LeadSource
	crafter   ContentCrafter
	deliverer Deliverer
	replies   ReplyChecker
	screener  Screener

	opts     Options
	logger   zerolog.Logger
	tracer   trace.Tracer
	recorder Recorder
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScreener adds a screening step before the first contact.
func WithScreener(s Screener) Option {
	return func(o *Orchestrator) { o.screener = s }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.With().Str("component", "orchestrator").Logger() }
}

// WithTracer sets the tracer used for run, lead and port spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock overrides the clock used to fix "now" for each Run.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over the store and the four ports.
func NewOrchestrator(
	store Store,
	source LeadSource,
	crafter ContentCrafter,
	deliverer Deliverer,
	replies ReplyChecker,
	opts Options,
	options ...Option,
) (*Orchestrator, error) {
	if store == nil || source == nil || crafter == nil || deliverer == nil || replies == nil {
		return nil, NewPermanentError("store and all ports are required", nil).WithCode(ErrCodeValidation)
	}
	if opts.FollowupDelay < 0 || opts.CloseAfter < 0 || opts.PortTimeout < 0 || opts.ClaimTTL < 0 {
		return nil, NewPermanentError("durations must not be negative", nil).WithCode(ErrCodeValidation)
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.ClaimTTL == 0 {
		opts.ClaimTTL = DefaultOptions().ClaimTTL
	}

	o := &Orchestrator{
		store:     store,
		source:    source,
		crafter:   crafter,
		deliverer: deliverer,
		replies:   replies,
		opts:      opts,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("leadflow/engine"),
		recorder:  noopRecorder{},
		now:       time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// leadOutcome is the single decision taken for a lead during a pass.
type leadOutcome int

const (
	outcomeUnchanged leadOutcome = iota
	outcomeInitialSent
	outcomeFollowupSent
	outcomeReplied
	outcomeClosed
	outcomeSkipped
	outcomeFailed
	outcomeRetry
	outcomeConflict
	outcomeIntegrity
)

func (s *RunSummary) record(o leadOutcome) {
	s.Processed++
	switch o {
	case outcomeUnchanged:
		s.Unchanged++
	case outcomeInitialSent:
		s.InitialSent++
	case outcomeFollowupSent:
		s.FollowupsSent++
	case outcomeReplied:
		s.Replied++
	case outcomeClosed:
		s.Closed++
	case outcomeSkipped:
		s.Skipped++
	case outcomeFailed:
		s.Failed++
	case outcomeRetry:
		s.Retried++
	case outcomeConflict:
		s.Conflicts++
	case outcomeIntegrity:
		s.Integrity++
	}
}

// pass carries the values fixed for one Run.
type pass struct {
	runID  string
	now    time.Time
	logger zerolog.Logger
}

// Run performs one reconciliation pass. It returns an error only when the
// pass was aborted: the store was unavailable or ctx was cancelled. Per-lead
// failures are reflected in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	p := pass{
		runID: o.opts.RunID,
		now:   o.now().UTC(),
	}
	if p.runID == "" {
		p.runID = uuid.New().String()
	}
	p.logger = o.logger.With().Str("run_id", p.runID).Logger()

	summary := &RunSummary{RunID: p.runID, StartedAt: p.now}

	ctx, span := o.tracer.Start(ctx, "leadflow.run", trace.WithAttributes(
		attribute.String("run.id", p.runID),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return o.abort(span, summary, fmt.Errorf("run cancelled: %w", err))
	}

	if err := o.reconcileSource(ctx, p, summary); err != nil {
		return o.abort(span, summary, err)
	}

	records, err := o.store.ListAll(ctx)
	if err != nil {
		return o.abort(span, summary, fmt.Errorf("store unavailable: failed to list leads: %w", err))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxParallel)

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome, err := o.processLead(gctx, p, rec)
			mu.Lock()
			summary.record(outcome)
			mu.Unlock()
			return err
		})
	}

	err = g.Wait()
	summary.Pending = len(records) - summary.Processed
	summary.CompletedAt = o.now().UTC()

	if err != nil {
		return o.abort(span, summary, err)
	}
	if err := ctx.Err(); err != nil {
		return o.abort(span, summary, fmt.Errorf("run cancelled: %w", err))
	}

	span.SetAttributes(
		attribute.Int("leads.processed", summary.Processed),
		attribute.Int("leads.failed", summary.Failed),
	)
	span.SetStatus(codes.Ok, "")

	p.logger.Info().
		Int("sourced", summary.Sourced).
		Int("processed", summary.Processed).
		Int("initial_sent", summary.InitialSent).
		Int("followups_sent", summary.FollowupsSent).
		Int("replied", summary.Replied).
		Int("closed", summary.Closed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("retried", summary.Retried).
		Int("conflicts", summary.Conflicts).
		Int("integrity_errors", summary.Integrity).
		Msg("Run completed")

	return summary, nil
}

func (o *Orchestrator) abort(span trace.Span, summary *RunSummary, err error) (*RunSummary, error) {
	if summary.CompletedAt.IsZero() {
		summary.CompletedAt = o.now().UTC()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Error().Err(err).Str("run_id", summary.RunID).Msg("Run aborted")
	return summary, err
}

// reconcileSource fetches the lead list and upserts every distinct identity.
// A failing source does not abort the pass: stored leads are still processed.
func (o *Orchestrator) reconcileSource(ctx context.Context, p pass, summary *RunSummary) error {
	var leads []Lead
	err := o.callPort(ctx, PortSource, "", func(ctx context.Context) error {
		var err error
		leads, err = o.source.FetchLeads(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		summary.SourceError = err.Error()
		p.logger.Error().Err(err).Msg("Lead source unavailable, continuing with stored leads")
		return nil
	}

	seen := make(map[string]bool, len(leads))
	for _, lead := range leads {
		id := lead.Identity()
		if id == "" {
			p.logger.Warn().Int("row", lead.Row).Msg("Dropping sourced row without email")
			continue
		}
		if seen[id] {
			p.logger.Debug().Str("email", id).Int("row", lead.Row).Msg("Ignoring duplicate sourced row")
			continue
		}
		seen[id] = true

		if _, err := o.store.UpsertSourced(ctx, lead); err != nil {
			if IsValidation(err) {
				p.logger.Warn().Err(err).Int("row", lead.Row).Msg("Dropping unusable sourced row")
				continue
			}
			return fmt.Errorf("store unavailable: failed to upsert lead %s: %w", id, err)
		}
		summary.Sourced++
	}
	return nil
}

// processLead takes at most one decision for a lead. The returned error is
// non-nil only when the store is unavailable.
func (o *Orchestrator) processLead(ctx context.Context, p pass, rec *LeadRecord) (leadOutcome, error) {
	if rec.State.IsTerminal() {
		return outcomeUnchanged, nil
	}

	ctx, span := o.tracer.Start(ctx, "leadflow.lead", trace.WithAttributes(
		attribute.String("lead.email", rec.Email),
		attribute.String("lead.state", string(rec.State)),
	))
	defer span.End()

	logger := p.logger.With().Str("email", rec.Email).Str("state", string(rec.State)).Logger()
	l := leadPass{pass: p, logger: logger}

	if rec.ClaimToken != "" {
		if rec.ClaimedAt != nil && p.now.Sub(*rec.ClaimedAt) < o.opts.ClaimTTL {
			logger.Info().Msg("Lead has a dispatch in flight elsewhere, skipping")
			return outcomeConflict, nil
		}
		return o.failStaleClaim(ctx, l, rec)
	}

	var (
		outcome leadOutcome
		err     error
	)
	switch rec.State {
	case StateNew:
		outcome, err = o.handleNew(ctx, l, rec)
	case StateInitialSent:
		outcome, err = o.handleInitialSent(ctx, l, rec)
	case StateFollowupSent:
		outcome, err = o.handleFollowupSent(ctx, l, rec)
	default:
		logger.Error().Msg("Lead is in an unknown state")
		outcome = outcomeIntegrity
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

type leadPass struct {
	pass
	logger zerolog.Logger
}

func (o *Orchestrator) handleNew(ctx context.Context, l leadPass, rec *LeadRecord) (leadOutcome, error) {
	lead := rec.Lead()

	if err := ValidateLead(lead); err != nil {
		return o.skip(ctx, l, rec, err.Error())
	}

	if o.screener != nil {
		var result *ScreenResult
		err := o.callPort(ctx, PortScreen, rec.Email, func(ctx context.Context) error {
			var err error
			result, err = o.screener.Screen(ctx, lead)
			return err
		})
		if err != nil {
			return o.recordRetry(ctx, l, rec, "", PortScreen, err, false)
		}
		if !result.Allowed {
			reason := "screened out"
			if len(result.Reasons) > 0 {
				reason = "screened out: " + strings.Join(result.Reasons, "; ")
			}
			return o.skip(ctx, l, rec, reason)
		}
	}

	return o.dispatch(ctx, l, rec, StageInitial, StateInitialSent)
}

func (o *Orchestrator) handleInitialSent(ctx context.Context, l leadPass, rec *LeadRecord) (leadOutcome, error) {
	outcome, replied, err := o.checkReply(ctx, l, rec)
	if err != nil || replied || outcome != outcomeUnchanged {
		return outcome, err
	}

	due, err := IsFollowupDue(rec, l.now, o.opts.FollowupDelay)
	if err != nil {
		return o.integrity(l, err)
	}
	if !due {
		return outcomeUnchanged, nil
	}

	return o.dispatch(ctx, l, rec, StageFollowup, StateFollowupSent)
}

func (o *Orchestrator) handleFollowupSent(ctx context.Context, l leadPass, rec *LeadRecord) (leadOutcome, error) {
	outcome, replied, err := o.checkReply(ctx, l, rec)
	if err != nil || replied || outcome != outcomeUnchanged {
		return outcome, err
	}

	due, err := IsCloseDue(rec, l.now, o.opts.CloseAfter)
	if err != nil {
		return o.integrity(l, err)
	}
	if !due {
		return outcomeUnchanged, nil
	}

	now := l.now
	return o.transition(ctx, l, rec, TransitionRequest{
		To:     StateClosed,
		Fields: FieldUpdates{ClosedAt: &now},
		Detail: fmt.Sprintf("no reply within %s of the follow-up", o.opts.CloseAfter),
	}, outcomeClosed)
}

// checkReply queries the reply signal for the record's current window. A
// failed check leaves the lead untouched for this pass.
func (o *Orchestrator) checkReply(ctx context.Context, l leadPass, rec *LeadRecord) (leadOutcome, bool, error) {
	since, err := ReplyWindowStart(rec)
	if err != nil {
		outcome, err := o.integrity(l, err)
		return outcome, false, err
	}

	var replied bool
	err = o.callPort(ctx, PortReplies, rec.Email, func(ctx context.Context) error {
		var err error
		replied, err = o.replies.HasRepliedSince(ctx, rec.Lead(), since)
		return err
	})
	if err != nil {
		outcome, err := o.recordRetry(ctx, l, rec, "", PortReplies, err, false)
		return outcome, false, err
	}
	if !replied {
		return outcomeUnchanged, false, nil
	}

	now := l.now
	outcome, err := o.transition(ctx, l, rec, TransitionRequest{
		To:     StateReplied,
		Fields: FieldUpdates{ReplyDetectedAt: &now},
		Detail: "reply detected after " + since.Format(time.RFC3339),
	}, outcomeReplied)
	return outcome, true, err
}

// dispatch claims the lead, crafts and delivers the email for stage and
// records the target state. The claim is written before Delivery is called,
// so a crash between send and commit is detected as a stale claim instead of
// causing a second send.
func (o *Orchestrator) dispatch(ctx context.Context, l leadPass, rec *LeadRecord, stage Stage, target LeadState) (leadOutcome, error) {
	storeCtx := context.WithoutCancel(ctx)
	token := uuid.New().String()

	claimed, err := o.store.Claim(storeCtx, rec.Email, rec.State, token, l.now, o.opts.ClaimTTL)
	switch {
	case errors.Is(err, ErrConflict):
		l.logger.Info().Msg("Lead changed concurrently, skipping")
		return outcomeConflict, nil
	case errors.Is(err, ErrStaleClaim):
		current, gerr := o.store.Get(storeCtx, rec.Email)
		if gerr != nil {
			return outcomeUnchanged, fmt.Errorf("store unavailable: %w", gerr)
		}
		return o.failStaleClaim(ctx, l, current)
	case err != nil:
		return outcomeUnchanged, fmt.Errorf("store unavailable: failed to claim lead %s: %w", rec.Email, err)
	}

	lead := claimed.Lead()

	var content Content
	err = o.callPort(ctx, PortContent, rec.Email, func(ctx context.Context) error {
		var err error
		content, err = o.crafter.Craft(ctx, lead, stage)
		return err
	})
	if err == nil {
		if strings.TrimSpace(content.Subject) == "" || strings.TrimSpace(content.Body) == "" {
			err = NewPermanentError("content has an empty subject or body", nil).
				WithCode(ErrCodeContentInvalid).WithLead(rec.Email).WithOperation(string(stage))
		}
	}
	if err != nil {
		return o.portFailure(ctx, l, claimed, token, PortContent, err)
	}

	var receipt *Receipt
	err = o.callPort(ctx, PortDelivery, rec.Email, func(ctx context.Context) error {
		var err error
		receipt, err = o.deliverer.Send(ctx, lead, content)
		return err
	})
	if err != nil {
		return o.portFailure(ctx, l, claimed, token, PortDelivery, err)
	}

	now := l.now
	fields := FieldUpdates{}
	if receipt != nil {
		fields.MessageID = receipt.MessageID
	}
	outcome := outcomeInitialSent
	if target == StateInitialSent {
		fields.InitialSentAt = &now
	} else {
		fields.LastFollowupSentAt = &now
		outcome = outcomeFollowupSent
	}

	_, err = o.store.Transition(storeCtx, TransitionRequest{
		Email:   rec.Email,
		From:    claimed.State,
		To:      target,
		Token:   token,
		Fields:  fields,
		RunID:   l.runID,
		Subject: content.Subject,
	})
	if err != nil {
		// The message is out. The claim stays behind and is resolved as an
		// unknown outcome by a later pass.
		l.logger.Error().Err(err).
			Str("message_id", fields.MessageID).
			Str("stage", string(stage)).
			Msg("Email delivered but state could not be recorded")
		if errors.Is(err, ErrConflict) || IsIntegrity(err) {
			return outcomeIntegrity, nil
		}
		return outcomeUnchanged, fmt.Errorf("store unavailable: failed to record %s for %s: %w", target, rec.Email, err)
	}

	o.recorder.RecordTransition(claimed.State, target)
	l.logger.Info().
		Str("stage", string(stage)).
		Str("message_id", fields.MessageID).
		Str("new_state", string(target)).
		Msg("Email sent")
	return outcome, nil
}

// portFailure handles an error from a port called while holding a claim.
func (o *Orchestrator) portFailure(ctx context.Context, l leadPass, rec *LeadRecord, token, port string, err error) (leadOutcome, error) {
	if IsRetryable(err) {
		return o.recordRetry(ctx, l, rec, token, port, err, true)
	}

	o.recorder.RecordError(ClassOf(err), CodeOf(err))
	if IsValidation(err) && rec.State == StateNew {
		if rerr := o.releaseClaim(ctx, l, rec, token, err.Error()); rerr != nil {
			return outcomeUnchanged, rerr
		}
		released := rec.Clone()
		released.ClaimToken = ""
		return o.skip(ctx, l, released, err.Error())
	}

	msg := fmt.Sprintf("%s: %v", port, err)
	return o.fail(ctx, l, rec, token, msg)
}

// recordRetry counts a retryable failure. Dispatch failures escalate to
// FAILED once the configured number of consecutive dispatch failures is reached.
func (o *Orchestrator) recordRetry(ctx context.Context, l leadPass, rec *LeadRecord, token, port string, cause error, escalate bool) (leadOutcome, error) {
	o.recorder.RecordError(ClassOf(cause), CodeOf(cause))
	msg := fmt.Sprintf("%s: %v", port, cause)

	updated, err := o.store.RecordFailure(context.WithoutCancel(ctx), rec.Email, rec.State, token, msg, escalate)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return outcomeConflict, nil
		}
		return outcomeUnchanged, fmt.Errorf("store unavailable: failed to record failure for %s: %w", rec.Email, err)
	}

	l.logger.Warn().Err(cause).
		Str("port", port).
		Int("error_count", updated.ErrorCount).
		Int("dispatch_error_count", updated.DispatchErrorCount).
		Msg("Retryable failure, lead left unchanged")

	if escalate && o.opts.MaxConsecutiveErrors > 0 && updated.DispatchErrorCount >= o.opts.MaxConsecutiveErrors {
		reason := fmt.Sprintf("%d consecutive dispatch failures, last: %s", updated.DispatchErrorCount, msg)
		return o.fail(ctx, l, updated, "", reason)
	}
	return outcomeRetry, nil
}

func (o *Orchestrator) releaseClaim(ctx context.Context, l leadPass, rec *LeadRecord, token, msg string) error {
	_, err := o.store.RecordFailure(context.WithoutCancel(ctx), rec.Email, rec.State, token, msg, false)
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("store unavailable: failed to release claim for %s: %w", rec.Email, err)
	}
	return nil
}

func (o *Orchestrator) skip(ctx context.Context, l leadPass, rec *LeadRecord, reason string) (leadOutcome, error) {
	l.logger.Warn().Str("reason", reason).Msg("Skipping lead")
	return o.transition(ctx, l, rec, TransitionRequest{
		To:     StateSkipped,
		Fields: FieldUpdates{LastError: &reason},
		Detail: reason,
	}, outcomeSkipped)
}

func (o *Orchestrator) fail(ctx context.Context, l leadPass, rec *LeadRecord, token, reason string) (leadOutcome, error) {
	l.logger.Error().Str("reason", reason).Msg("Lead failed")
	return o.transition(ctx, l, rec, TransitionRequest{
		To:     StateFailed,
		Token:  token,
		Fields: FieldUpdates{LastError: &reason},
		Detail: reason,
	}, outcomeFailed)
}

func (o *Orchestrator) failStaleClaim(ctx context.Context, l leadPass, rec *LeadRecord) (leadOutcome, error) {
	claimedAt := "unknown time"
	if rec.ClaimedAt != nil {
		claimedAt = rec.ClaimedAt.Format(time.RFC3339)
	}
	reason := fmt.Sprintf("dispatch outcome unknown: claim taken at %s was never completed", claimedAt)
	o.recorder.RecordError(ErrorClassIntegrity, ErrCodeOutcomeUnknown)
	return o.fail(ctx, l, rec, rec.ClaimToken, reason)
}

// transition applies req from the record's current state and maps store
// errors to outcomes.
func (o *Orchestrator) transition(ctx context.Context, l leadPass, rec *LeadRecord, req TransitionRequest, success leadOutcome) (leadOutcome, error) {
	req.Email = rec.Email
	req.From = rec.State
	req.RunID = l.runID

	_, err := o.store.Transition(context.WithoutCancel(ctx), req)
	switch {
	case err == nil:
		o.recorder.RecordTransition(req.From, req.To)
		l.logger.Info().Str("new_state", string(req.To)).Msg("Lead transitioned")
		return success, nil
	case errors.Is(err, ErrConflict):
		l.logger.Info().Str("new_state", string(req.To)).Msg("Lead changed concurrently, transition dropped")
		return outcomeConflict, nil
	case IsIntegrity(err):
		return o.integrity(l, err)
	default:
		return outcomeUnchanged, fmt.Errorf("store unavailable: failed to transition %s to %s: %w", rec.Email, req.To, err)
	}
}

func (o *Orchestrator) integrity(l leadPass, err error) (leadOutcome, error) {
	o.recorder.RecordError(ErrorClassIntegrity, CodeOf(err))
	l.logger.Error().Err(err).Msg("Data integrity error, lead left untouched")
	return outcomeIntegrity, nil
}

// callPort runs fn under the port timeout with a span and a measurement.
// A timeout is reported as a transient error.
func (o *Orchestrator) callPort(ctx context.Context, port, email string, fn func(context.Context) error) error {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.PortTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.opts.PortTimeout)
	}
	defer cancel()

	callCtx, span := o.tracer.Start(callCtx, "leadflow.port."+port, trace.WithAttributes(
		attribute.String("port.name", port),
		attribute.String("lead.email", email),
	))
	defer span.End()

	start := time.Now()
	err := fn(callCtx)
	duration := time.Since(start)

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = NewTransientError(fmt.Sprintf("%s call timed out after %s", port, o.opts.PortTimeout), err).
			WithCode(ErrCodeTimeout).WithLead(email).WithOperation(port)
	}

	result := "success"
	if err != nil {
		result = string(ClassOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.recorder.RecordPortCall(port, result, duration)
	return err
}
