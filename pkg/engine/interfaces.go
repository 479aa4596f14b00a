package engine

import (
	"context"
	"time"
)

// LeadSource produces the current lead list.
type LeadSource interface {
	// FetchLeads returns the leads in source order. Rows without an email are
	// dropped by the source; malformed addresses are passed through.
	FetchLeads(ctx context.Context) ([]Lead, error)
}

// ContentCrafter produces the email for a lead at a given stage.
type ContentCrafter interface {
	// Craft returns the subject and body. It must be deterministic for the
	// same lead and stage.
	Craft(ctx context.Context, lead Lead, stage Stage) (Content, error)
}

// Deliverer sends an email to a lead.
type Deliverer interface {
	// Send delivers the content. A nil error means the message was accepted.
	Send(ctx context.Context, lead Lead, content Content) (*Receipt, error)
}

// ReplyChecker reports whether a lead has written back.
type ReplyChecker interface {
	// HasRepliedSince returns true if a message from the lead arrived after since.
	HasRepliedSince(ctx context.Context, lead Lead, since time.Time) (bool, error)
}

// Screener decides whether a NEW lead may be contacted at all.
type Screener interface {
	// Screen evaluates the lead. A denied lead is never contacted.
	Screen(ctx context.Context, lead Lead) (*ScreenResult, error)
}

// ScreenResult is the outcome of screening one lead.
type ScreenResult struct {
	// Allowed is false when at least one blocking rule matched.
	Allowed bool `json:"allowed"`

	// Reasons lists the messages of the matching rules.
	Reasons []string `json:"reasons,omitempty"`
}

// Store is the durable per-lead state store. Every mutation is atomic per lead.
type Store interface {
	// Get returns the record for a normalized email or ErrNotFound.
	Get(ctx context.Context, email string) (*LeadRecord, error)

	// UpsertSourced creates the record in NEW or refreshes its attributes.
	// State, timestamps and counters are never touched.
	UpsertSourced(ctx context.Context, lead Lead) (*LeadRecord, error)

	// Transition applies a compare-and-set state change. It returns ErrConflict
	// when the record is no longer in req.From or is claimed by another token.
	Transition(ctx context.Context, req TransitionRequest) (*LeadRecord, error)

	// Claim marks a dispatch in flight for a lead in state from. A live claim
	// held by another token yields ErrConflict; one older than ttl yields ErrStaleClaim.
	Claim(ctx context.Context, email string, from LeadState, token string, now time.Time, ttl time.Duration) (*LeadRecord, error)

	// RecordFailure counts a retryable failure and releases the caller's claim.
	// Failures of a dispatch (content or delivery) are counted separately
	// from reply-check and screening failures.
	RecordFailure(ctx context.Context, email string, from LeadState, token, message string, dispatch bool) (*LeadRecord, error)

	// ListAll returns every record from committed state.
	ListAll(ctx context.Context) ([]*LeadRecord, error)

	// Reopen moves a FAILED or SKIPPED lead back to NEW, keeping its history.
	Reopen(ctx context.Context, email, actor, reason string) (*LeadRecord, error)
}

// Recorder receives orchestration measurements.
type Recorder interface {
	RecordTransition(from, to LeadState)
	RecordPortCall(port, result string, duration time.Duration)
	RecordError(class ErrorClass, code string)
}

type noopRecorder struct{}

func (noopRecorder) RecordTransition(LeadState, LeadState)        {}
func (noopRecorder) RecordPortCall(string, string, time.Duration) {}
func (noopRecorder) RecordError(ErrorClass, string)               {}
