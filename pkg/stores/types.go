package stores

import (
	"context"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// RunStatus represents the status of an invocation
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailedLeads RunStatus = "failed_leads"
	RunStatusAborted     RunStatus = "aborted"
)

// Run represents one invocation of the reconciliation pass
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Summary     string     `json:"summary"` // JSON blob
}

// LeadEvent is an append-only record of a lead state change
type LeadEvent struct {
	ID         int64            `json:"id"`
	Email      string           `json:"email"`
	Type       engine.EventType `json:"event_type"`
	FromState  engine.LeadState `json:"from_state"`
	ToState    engine.LeadState `json:"to_state"`
	RunID      string           `json:"run_id,omitempty"`
	Subject    string           `json:"subject,omitempty"`
	MessageID  string           `json:"message_id,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// HistoryEntry is a snapshot of a lead taken before it was re-opened
type HistoryEntry struct {
	ID         int64              `json:"id"`
	Email      string             `json:"email"`
	Snapshot   *engine.LeadRecord `json:"snapshot"`
	Reason     string             `json:"reason"`
	Actor      string             `json:"actor"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "lead.reopened", "lead.imported"
	Actor     string    `json:"actor"`               // operator or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // lead email or run ID
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// CampaignStats summarizes outreach progress across all leads
type CampaignStats struct {
	TotalLeads    int                      `json:"total_leads"`
	ByState       map[engine.LeadState]int `json:"by_state"`
	InitialSent   int                      `json:"initial_sent"`
	FollowupsSent int                      `json:"followups_sent"`
	Replies       int                      `json:"replies"`
	ResponseRate  float64                  `json:"response_rate"` // percent of initial sends
}

// ActivityDay counts lead events of each type on one UTC day
type ActivityDay struct {
	Day    string                   `json:"day"` // YYYY-MM-DD
	Counts map[engine.EventType]int `json:"counts"`
}

// Store defines the interface for the persistence layer
type Store interface {
	engine.Store

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Seeding for imports; never overwrites an existing record
	Seed(ctx context.Context, rec *engine.LeadRecord) (bool, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, summary string, errMsg *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Event and history operations
	ListEvents(ctx context.Context, email *string, limit, offset int) ([]*LeadEvent, error)
	ListHistory(ctx context.Context, email string) ([]*HistoryEntry, error)

	// Analytics
	CampaignStats(ctx context.Context) (*CampaignStats, error)
	Activity(ctx context.Context, since time.Time) ([]ActivityDay, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action, actor, target *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
