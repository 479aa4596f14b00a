package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Export is the JSON document written by ExportJSON: every lead keyed by
// normalized email.
type Export struct {
	ExportedAt time.Time                     `json:"exported_at"`
	Leads      map[string]*engine.LeadRecord `json:"leads"`
}

// ExportJSON snapshots every lead record.
func ExportJSON(ctx context.Context, s engine.Store) (*Export, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &Export{
		ExportedAt: time.Now().UTC(),
		Leads:      make(map[string]*engine.LeadRecord, len(records)),
	}
	for _, rec := range records {
		out.Leads[rec.Email] = rec
	}
	return out, nil
}

// WriteJSONAtomic writes v as indented JSON to path through a temp file and
// rename, so readers never see a partial file.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// legacyStates maps the status names of the JSON tracking file used before
// the SQLite store to lead states.
var legacyStates = map[string]engine.LeadState{
	"PENDING":            engine.StateNew,
	"INITIAL_EMAIL_SENT": engine.StateInitialSent,
	"FOLLOW_UP_SENT":     engine.StateFollowupSent,
	"REPLIED":            engine.StateReplied,
}

type legacyEntry struct {
	Status                string `json:"status"`
	InitialSentTimestamp  string `json:"initial_sent_timestamp"`
	FollowUpSentTimestamp string `json:"follow_up_sent_timestamp"`
	RepliedTimestamp      string `json:"replied_timestamp"`
}

// LegacyRejection explains why an entry of a legacy file was not imported.
type LegacyRejection struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ParseLegacy reads a legacy tracking file ({"email": {"status": ...}}) into
// lead records. Entries that cannot be represented are returned as
// rejections, sorted by email.
func ParseLegacy(r io.Reader) ([]*engine.LeadRecord, []LegacyRejection, error) {
	var raw map[string]legacyEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, engine.NewValidationError("legacy file is not a JSON object of leads", err)
	}

	emails := make([]string, 0, len(raw))
	for email := range raw {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	var (
		records  []*engine.LeadRecord
		rejected []LegacyRejection
	)
	for _, email := range emails {
		rec, err := legacyRecord(email, raw[email])
		if err != nil {
			rejected = append(rejected, LegacyRejection{Email: email, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, rejected, nil
}

func legacyRecord(email string, e legacyEntry) (*engine.LeadRecord, error) {
	normalized := engine.NormalizeEmail(email)
	if err := engine.ValidateLead(engine.Lead{Email: normalized}); err != nil {
		return nil, err
	}

	status := strings.ToUpper(strings.TrimSpace(e.Status))
	if status == "" {
		status = "PENDING"
	}
	state, ok := legacyStates[status]
	if !ok {
		return nil, fmt.Errorf("unknown legacy status %q", e.Status)
	}

	rec := &engine.LeadRecord{
		ID:    engine.LeadID(normalized),
		Email: normalized,
		State: state,
	}

	var err error
	if rec.InitialSentAt, err = parseLegacyTime(e.InitialSentTimestamp); err != nil {
		return nil, fmt.Errorf("initial_sent_timestamp: %w", err)
	}
	if rec.LastFollowupSentAt, err = parseLegacyTime(e.FollowUpSentTimestamp); err != nil {
		return nil, fmt.Errorf("follow_up_sent_timestamp: %w", err)
	}
	if rec.ReplyDetectedAt, err = parseLegacyTime(e.RepliedTimestamp); err != nil {
		return nil, fmt.Errorf("replied_timestamp: %w", err)
	}

	switch state {
	case engine.StateInitialSent:
		if rec.InitialSentAt == nil {
			return nil, fmt.Errorf("status %s without initial_sent_timestamp", status)
		}
	case engine.StateFollowupSent:
		if rec.InitialSentAt == nil || rec.LastFollowupSentAt == nil {
			return nil, fmt.Errorf("status %s without both send timestamps", status)
		}
	}

	return rec, nil
}

var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseLegacyTime accepts ISO 8601 timestamps with or without an offset.
// Timestamps without an offset are taken as UTC.
func parseLegacyTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}

// ImportResult summarizes an import of legacy records.
type ImportResult struct {
	Imported []string          `json:"imported"`
	Existing []string          `json:"existing"`
	Rejected []LegacyRejection `json:"rejected"`
}

// ImportLegacy seeds the parsed records. Records whose email already exists
// are left untouched. Each import is audited.
func ImportLegacy(ctx context.Context, s Store, records []*engine.LeadRecord, rejected []LegacyRejection, actor string) (*ImportResult, error) {
	result := &ImportResult{Rejected: rejected}

	for _, rec := range records {
		inserted, err := s.Seed(ctx, rec)
		if err != nil {
			if engine.IsValidation(err) {
				result.Rejected = append(result.Rejected, LegacyRejection{Email: rec.Email, Reason: err.Error()})
				continue
			}
			return result, err
		}
		if !inserted {
			result.Existing = append(result.Existing, rec.Email)
			continue
		}
		result.Imported = append(result.Imported, rec.Email)
	}

	details, _ := json.Marshal(map[string]int{
		"imported": len(result.Imported),
		"existing": len(result.Existing),
		"rejected": len(result.Rejected),
	})
	detailStr := string(details)
	if err := s.CreateAuditEntry(ctx, &AuditEntry{
		Action:  "lead.imported",
		Actor:   actor,
		Details: &detailStr,
	}); err != nil {
		return result, err
	}

	return result, nil
}
