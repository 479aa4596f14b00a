package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/leadflow/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 4
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database in WAL mode with synchronous commits.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(FULL)&_txlock=immediate",
		s.cfg.Path, s.cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

const leadColumns = `email, lead_id, first_name, last_name, company, title, industry, state,
	initial_sent_at, last_followup_sent_at, reply_detected_at, closed_at,
	initial_message_id, followup_message_id, error_count, dispatch_error_count, last_error,
	claim_token, claimed_at, reopen_count, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*engine.LeadRecord, error) {
	var (
		rec                                        engine.LeadRecord
		state                                      string
		initialSent, followupSent, replied, closed sql.NullString
		claimToken, claimedAt                      sql.NullString
		createdAt, updatedAt                       string
	)

	err := row.Scan(
		&rec.Email,
		&rec.ID,
		&rec.Attributes.FirstName,
		&rec.Attributes.LastName,
		&rec.Attributes.Company,
		&rec.Attributes.Title,
		&rec.Attributes.Industry,
		&state,
		&initialSent,
		&followupSent,
		&replied,
		&closed,
		&rec.InitialMessageID,
		&rec.FollowupMessageID,
		&rec.ErrorCount,
		&rec.DispatchErrorCount,
		&rec.LastError,
		&claimToken,
		&claimedAt,
		&rec.ReopenCount,
		&rec.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State = engine.LeadState(state)
	rec.ClaimToken = claimToken.String

	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{initialSent, &rec.InitialSentAt},
		{followupSent, &rec.LastFollowupSentAt},
		{replied, &rec.ReplyDetectedAt},
		{closed, &rec.ClosedAt},
		{claimedAt, &rec.ClaimedAt},
	} {
		t, err := parseNullTime(f.src)
		if err != nil {
			return nil, fmt.Errorf("lead %s: %w", rec.Email, err)
		}
		*f.dst = t
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("lead %s: %w", rec.Email, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("lead %s: %w", rec.Email, err)
	}

	return &rec, nil
}

// Get retrieves a lead by normalized email
func (s *SQLiteStore) Get(ctx context.Context, email string) (*engine.LeadRecord, error) {
	return s.getLead(ctx, s.db, engine.NormalizeEmail(email))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getLead(ctx context.Context, q queryRower, email string) (*engine.LeadRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ?`, email)
	rec, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return rec, nil
}

// UpsertSourced creates a lead in NEW or refreshes its attributes. A row
// with identical attributes leaves the record untouched.
func (s *SQLiteStore) UpsertSourced(ctx context.Context, lead engine.Lead) (*engine.LeadRecord, error) {
	email := lead.Identity()
	if email == "" {
		return nil, engine.NewValidationError("lead has no email", nil).WithOperation("upsert")
	}

	a := lead.Attributes
	now := formatTime(time.Now())

	query := `
		INSERT INTO leads (email, lead_id, first_name, last_name, company, title, industry,
			state, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'NEW', 1, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			company = excluded.company,
			title = excluded.title,
			industry = excluded.industry,
			version = leads.version + 1,
			updated_at = excluded.updated_at
		WHERE leads.first_name <> excluded.first_name
		   OR leads.last_name <> excluded.last_name
		   OR leads.company <> excluded.company
		   OR leads.title <> excluded.title
		   OR leads.industry <> excluded.industry
	`

	_, err := s.db.ExecContext(ctx, query,
		email,
		engine.LeadID(email),
		strings.TrimSpace(a.FirstName),
		strings.TrimSpace(a.LastName),
		strings.TrimSpace(a.Company),
		strings.TrimSpace(a.Title),
		strings.TrimSpace(a.Industry),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}

	return s.Get(ctx, email)
}

// Transition applies a compare-and-set state change and appends the lead
// event in the same transaction.
func (s *SQLiteStore) Transition(ctx context.Context, req engine.TransitionRequest) (*engine.LeadRecord, error) {
	email := engine.NormalizeEmail(req.Email)
	if err := validateTransition(email, req); err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	f := req.Fields

	sets := []string{"state = ?", "version = version + 1", "updated_at = ?", "claim_token = NULL", "claimed_at = NULL"}
	args := []any{string(req.To), now}

	switch req.To {
	case engine.StateInitialSent, engine.StateFollowupSent, engine.StateReplied, engine.StateClosed:
		sets = append(sets, "error_count = 0", "dispatch_error_count = 0", "last_error = ''")
	}
	if f.InitialSentAt != nil {
		sets = append(sets, "initial_sent_at = ?")
		args = append(args, formatTime(*f.InitialSentAt))
	}
	if f.LastFollowupSentAt != nil {
		sets = append(sets, "last_followup_sent_at = ?")
		args = append(args, formatTime(*f.LastFollowupSentAt))
	}
	if f.ReplyDetectedAt != nil {
		sets = append(sets, "reply_detected_at = ?")
		args = append(args, formatTime(*f.ReplyDetectedAt))
	}
	if f.ClosedAt != nil {
		sets = append(sets, "closed_at = ?")
		args = append(args, formatTime(*f.ClosedAt))
	}
	if f.MessageID != "" {
		switch req.To {
		case engine.StateInitialSent:
			sets = append(sets, "initial_message_id = ?")
			args = append(args, f.MessageID)
		case engine.StateFollowupSent:
			sets = append(sets, "followup_message_id = ?")
			args = append(args, f.MessageID)
		}
	}
	if f.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, *f.LastError)
	}

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + `
		WHERE email = ? AND state = ? AND (claim_token IS NULL OR claim_token = ?)`
	args = append(args, email, string(req.From), req.Token)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to transition lead: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, s.casFailure(ctx, tx, email, req.From)
	}

	event := &LeadEvent{
		Email:     email,
		Type:      engine.EventForState(req.To),
		FromState: req.From,
		ToState:   req.To,
		RunID:     req.RunID,
		Subject:   req.Subject,
		MessageID: f.MessageID,
		Detail:    req.Detail,
	}
	if err := insertEvent(ctx, tx, event, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	return s.Get(ctx, email)
}

// validateTransition rejects edges outside the state machine and
// transitions that would break the timestamp invariants.
func validateTransition(email string, req engine.TransitionRequest) error {
	if email == "" {
		return engine.NewValidationError("transition without lead identity", nil).WithOperation("transition")
	}
	if !engine.CanTransition(req.From, req.To) {
		return engine.NewIntegrityError(fmt.Sprintf("transition %s -> %s is not allowed", req.From, req.To), nil).
			WithLead(email).WithOperation("transition")
	}
	switch req.To {
	case engine.StateInitialSent:
		if req.Fields.InitialSentAt == nil {
			return engine.NewIntegrityError("INITIAL_SENT requires initial_sent_at", nil).
				WithLead(email).WithOperation("transition")
		}
	case engine.StateFollowupSent:
		if req.Fields.LastFollowupSentAt == nil {
			return engine.NewIntegrityError("FOLLOWUP_SENT requires last_followup_sent_at", nil).
				WithLead(email).WithOperation("transition")
		}
	}
	return nil
}

// casFailure explains why a guarded update matched no row.
func (s *SQLiteStore) casFailure(ctx context.Context, q queryRower, email string, expected engine.LeadState) error {
	var state string
	var token sql.NullString
	err := q.QueryRowContext(ctx, `SELECT state, claim_token FROM leads WHERE email = ?`, email).Scan(&state, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", engine.ErrNotFound, email)
	}
	if err != nil {
		return fmt.Errorf("failed to read lead after conflict: %w", err)
	}
	if engine.LeadState(state) != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", engine.ErrConflict, email, state, expected)
	}
	return fmt.Errorf("%w: %s is claimed by another dispatch", engine.ErrConflict, email)
}

// Claim marks a dispatch in flight for a lead in state from.
func (s *SQLiteStore) Claim(ctx context.Context, email string, from engine.LeadState, token string, now time.Time, ttl time.Duration) (*engine.LeadRecord, error) {
	email = engine.NormalizeEmail(email)
	if token == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	query := `
		UPDATE leads
		SET claim_token = ?, claimed_at = ?, version = version + 1, updated_at = ?
		WHERE email = ? AND state = ? AND claim_token IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, token, formatTime(now), formatTime(time.Now()), email, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to claim lead: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return s.Get(ctx, email)
	}

	rec, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec.State != from {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", engine.ErrConflict, email, rec.State, from)
	}
	if rec.ClaimToken != "" && rec.ClaimedAt != nil && now.Sub(*rec.ClaimedAt) >= ttl {
		return nil, fmt.Errorf("%w: %s claimed at %s", engine.ErrStaleClaim, email, rec.ClaimedAt.Format(time.RFC3339))
	}
	return nil, fmt.Errorf("%w: %s is claimed by another dispatch", engine.ErrConflict, email)
}

// RecordFailure counts a retryable failure and releases the caller's claim.
// Dispatch failures also increment dispatch_error_count.
func (s *SQLiteStore) RecordFailure(ctx context.Context, email string, from engine.LeadState, token, message string, dispatch bool) (*engine.LeadRecord, error) {
	email = engine.NormalizeEmail(email)

	dispatchInc := 0
	if dispatch {
		dispatchInc = 1
	}

	query := `
		UPDATE leads
		SET error_count = error_count + 1, dispatch_error_count = dispatch_error_count + ?,
			last_error = ?,
			claim_token = NULL, claimed_at = NULL,
			version = version + 1, updated_at = ?
		WHERE email = ? AND state = ? AND (claim_token IS NULL OR claim_token = ?)
	`

	result, err := s.db.ExecContext(ctx, query, dispatchInc, message, formatTime(time.Now()), email, string(from), token)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, s.casFailure(ctx, s.db, email, from)
	}

	return s.Get(ctx, email)
}

// ListAll returns every lead in creation order
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*engine.LeadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at ASC, email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []*engine.LeadRecord{}
	for rows.Next() {
		rec, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

// Reopen moves a FAILED or SKIPPED lead back to NEW. The previous record is
// archived in lead_history and the action is audited.
func (s *SQLiteStore) Reopen(ctx context.Context, email, actor, reason string) (*engine.LeadRecord, error) {
	email = engine.NormalizeEmail(email)
	if actor == "" {
		actor = "operator"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.getLead(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	if !rec.State.IsReopenable() {
		return nil, engine.NewPermanentError(
			fmt.Sprintf("lead is %s; only FAILED or SKIPPED leads can be re-opened", rec.State), nil).
			WithCode(engine.ErrCodeValidation).WithLead(email).WithOperation("reopen")
	}

	snapshot, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lead snapshot: %w", err)
	}

	now := formatTime(time.Now())

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO lead_history (email, snapshot, reason, actor, archived_at)
		VALUES (?, ?, ?, ?, ?)
	`, email, string(snapshot), reason, actor, now); err != nil {
		return nil, fmt.Errorf("failed to archive lead: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE leads
		SET state = 'NEW',
			initial_sent_at = NULL, last_followup_sent_at = NULL,
			reply_detected_at = NULL, closed_at = NULL,
			initial_message_id = '', followup_message_id = '',
			error_count = 0, dispatch_error_count = 0, last_error = '',
			claim_token = NULL, claimed_at = NULL,
			reopen_count = reopen_count + 1,
			version = version + 1, updated_at = ?
		WHERE email = ? AND version = ?
	`, now, email, rec.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen lead: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s changed during re-open", engine.ErrConflict, email)
	}

	if err := insertEvent(ctx, tx, &LeadEvent{
		Email:     email,
		Type:      engine.EventReopened,
		FromState: rec.State,
		ToState:   engine.StateNew,
		Detail:    reason,
	}, now); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]string{
		"from_state": string(rec.State),
		"reason":     reason,
	})
	detailStr := string(details)
	if err := insertAudit(ctx, tx, &AuditEntry{
		Action:   "lead.reopened",
		Actor:    actor,
		TargetID: &email,
		Details:  &detailStr,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit re-open: %w", err)
	}

	return s.Get(ctx, email)
}

// Seed inserts a complete record if no record exists for its email.
// It reports whether the record was inserted.
func (s *SQLiteStore) Seed(ctx context.Context, rec *engine.LeadRecord) (bool, error) {
	email := engine.NormalizeEmail(rec.Email)
	if email == "" {
		return false, engine.NewValidationError("lead has no email", nil).WithOperation("seed")
	}
	if err := rec.State.Validate(); err != nil {
		return false, engine.NewValidationError("invalid state", err).WithLead(email).WithOperation("seed")
	}

	now := time.Now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, 1, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		email,
		engine.LeadID(email),
		rec.Attributes.FirstName,
		rec.Attributes.LastName,
		rec.Attributes.Company,
		rec.Attributes.Title,
		rec.Attributes.Industry,
		string(rec.State),
		nullTime(rec.InitialSentAt),
		nullTime(rec.LastFollowupSentAt),
		nullTime(rec.ReplyDetectedAt),
		nullTime(rec.ClosedAt),
		rec.InitialMessageID,
		rec.FollowupMessageID,
		rec.ErrorCount,
		rec.DispatchErrorCount,
		rec.LastError,
		rec.ReopenCount,
		formatTime(created),
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed lead %s: %w", email, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, q execer, event *LeadEvent, at string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO lead_events (email, event_type, from_state, to_state, run_id, subject, message_id, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.Email,
		string(event.Type),
		string(event.FromState),
		string(event.ToState),
		event.RunID,
		event.Subject,
		event.MessageID,
		event.Detail,
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to append lead event: %w", err)
	}
	return nil
}

// ListEvents lists lead events, newest first, optionally for one lead
func (s *SQLiteStore) ListEvents(ctx context.Context, email *string, limit, offset int) ([]*LeadEvent, error) {
	var filter *string
	if email != nil {
		normalized := engine.NormalizeEmail(*email)
		filter = &normalized
	}

	query := `
		SELECT id, email, event_type, from_state, to_state, run_id, subject, message_id, detail, occurred_at
		FROM lead_events
		WHERE (? IS NULL OR email = ?)
		ORDER BY occurred_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, filter, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*LeadEvent{}
	for rows.Next() {
		var (
			event         LeadEvent
			eventType     string
			fromState, to string
			occurredAt    string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Email,
			&eventType,
			&fromState,
			&to,
			&event.RunID,
			&event.Subject,
			&event.MessageID,
			&event.Detail,
			&occurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Type = engine.EventType(eventType)
		event.FromState = engine.LeadState(fromState)
		event.ToState = engine.LeadState(to)
		if event.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// ListHistory returns the archived snapshots of a lead, oldest first
func (s *SQLiteStore) ListHistory(ctx context.Context, email string) ([]*HistoryEntry, error) {
	email = engine.NormalizeEmail(email)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, snapshot, reason, actor, archived_at
		FROM lead_history
		WHERE email = ?
		ORDER BY id ASC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		var (
			entry      HistoryEntry
			snapshot   string
			archivedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Email, &snapshot, &entry.Reason, &entry.Actor, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Snapshot = &engine.LeadRecord{}
		if err := json.Unmarshal([]byte(snapshot), entry.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", entry.ID, err)
		}
		if entry.ArchivedAt, err = parseTime(archivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
