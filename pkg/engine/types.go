package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attributes are the descriptive fields of a lead as last seen at the source.
type Attributes struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name"`
	Company   string `json:"company" yaml:"company"`
	Title     string `json:"title,omitempty" yaml:"title"`
	Industry  string `json:"industry,omitempty" yaml:"industry"`
}

// FullName joins first and last name.
func (a Attributes) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Lead is a row produced by a LeadSource.
type Lead struct {
	// Email is the raw address as read from the source.
	Email string `json:"email"`

	// Attributes are the descriptive fields of the row.
	Attributes Attributes `json:"attributes"`

	// Row is the 1-based position at the source, used for diagnostics.
	Row int `json:"row,omitempty"`
}

// Identity returns the normalized email of the lead.
func (l Lead) Identity() string {
	return NormalizeEmail(l.Email)
}

// LeadRecord is the persisted state of one lead.
type LeadRecord struct {
	// ID is a stable identifier derived from the normalized email.
	ID string `json:"lead_id"`

	// Email is the normalized email and the natural key of the record.
	Email string `json:"email"`

	// Attributes is the attribute snapshot from the most recent sourcing.
	Attributes Attributes `json:"attributes"`

	// State is the current workflow state.
	State LeadState `json:"state"`

	InitialSentAt      *time.Time `json:"initial_sent_at,omitempty"`
	LastFollowupSentAt *time.Time `json:"last_followup_sent_at,omitempty"`
	ReplyDetectedAt    *time.Time `json:"reply_detected_at,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`

	InitialMessageID  string `json:"initial_message_id,omitempty"`
	FollowupMessageID string `json:"followup_message_id,omitempty"`

	// ErrorCount is the number of consecutive retryable failures of any port.
	ErrorCount int `json:"error_count"`
	// DispatchErrorCount counts only the consecutive retryable failures of
	// dispatches; it drives escalation to FAILED.
	DispatchErrorCount int    `json:"dispatch_error_count"`
	LastError          string `json:"last_error,omitempty"`

	// ClaimToken is set while a dispatch for this lead is in flight.
	ClaimToken string     `json:"claim_token,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`

	ReopenCount int   `json:"reopen_count"`
	Version     int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead returns the record as a Lead for the content and delivery ports.
func (r *LeadRecord) Lead() Lead {
	return Lead{Email: r.Email, Attributes: r.Attributes}
}

// Clone returns a deep copy of the record.
func (r *LeadRecord) Clone() *LeadRecord {
	c := *r
	c.InitialSentAt = cloneTime(r.InitialSentAt)
	c.LastFollowupSentAt = cloneTime(r.LastFollowupSentAt)
	c.ReplyDetectedAt = cloneTime(r.ReplyDetectedAt)
	c.ClosedAt = cloneTime(r.ClosedAt)
	c.ClaimedAt = cloneTime(r.ClaimedAt)
	return &c
}

// DisplayState returns the state reported to operators, which includes the
// derived FOLLOWUP_DUE state.
func (r *LeadRecord) DisplayState(now time.Time, delay time.Duration) LeadState {
	if due, err := IsFollowupDue(r, now, delay); err == nil && due {
		return StateFollowupDue
	}
	return r.State
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Content is a ready-to-send email.
type Content struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Receipt is returned by a Deliverer after a successful send.
type Receipt struct {
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// FieldUpdates are the non-state fields written by a transition.
// Nil pointers leave the stored value unchanged.
type FieldUpdates struct {
	InitialSentAt      *time.Time
	LastFollowupSentAt *time.Time
	ReplyDetectedAt    *time.Time
	ClosedAt           *time.Time

	// MessageID is stored as the initial or follow-up message id depending on the target state.
	MessageID string

	// LastError replaces the stored last error when set.
	LastError *string
}

// TransitionRequest is a compare-and-set state change for one lead.
type TransitionRequest struct {
	Email string
	From  LeadState
	To    LeadState

	// Token is the dispatch claim held by the caller. An empty token requires
	// the lead to be unclaimed.
	Token string

	Fields FieldUpdates

	// RunID, Subject and Detail are recorded on the lead event.
	RunID   string
	Subject string
	Detail  string
}

// RunSummary counts the outcomes of one invocation.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Sourced     int    `json:"sourced"`
	SourceError string `json:"source_error,omitempty"`

	Processed     int `json:"processed"`
	InitialSent   int `json:"initial_sent"`
	FollowupsSent int `json:"followups_sent"`
	Replied       int `json:"replied"`
	Closed        int `json:"closed"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	Retried       int `json:"retried"`
	Conflicts     int `json:"conflicts"`
	Integrity     int `json:"integrity_errors"`
	Unchanged     int `json:"unchanged"`
	Pending       int `json:"pending"`
}

// HasFailures returns true if any lead entered FAILED during the invocation.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// NormalizeEmail trims and lower-cases an address into its identity form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LeadID derives the stable lead id for a normalized email.
func LeadID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}
