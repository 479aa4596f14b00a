package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

const legacyFile = `{
    "a@x.com": {"status": "INITIAL_EMAIL_SENT", "initial_sent_timestamp": "2025-01-01T10:00:00.123456+00:00"},
    "b@x.com": {"status": "FOLLOW_UP_SENT", "initial_sent_timestamp": "2025-01-01T10:00:00", "follow_up_sent_timestamp": "2025-01-03T10:00:00Z"},
    "c@x.com": {"status": "REPLIED", "initial_sent_timestamp": "2025-01-01T10:00:00Z", "replied_timestamp": "2025-01-02T08:00:00Z"},
    "d@x.com": {"status": "PENDING"},
    "e@x.com": {"status": "INITIAL_EMAIL_SENT"},
    "f@x.com": {"status": "BOUNCED"},
    "not-an-email": {"status": "PENDING"}
}`

func TestParseLegacy(t *testing.T) {
	records, rejected, err := ParseLegacy(strings.NewReader(legacyFile))
	if err != nil {
		t.Fatalf("failed to parse legacy file: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %d: %+v", len(rejected), rejected)
	}

	want := map[string]engine.LeadState{
		"a@x.com": engine.StateInitialSent,
		"b@x.com": engine.StateFollowupSent,
		"c@x.com": engine.StateReplied,
		"d@x.com": engine.StateNew,
	}
	for _, rec := range records {
		if rec.State != want[rec.Email] {
			t.Errorf("%s: expected %s, got %s", rec.Email, want[rec.Email], rec.State)
		}
	}

	if records[0].InitialSentAt == nil || records[0].InitialSentAt.Nanosecond() != 123456000 {
		t.Errorf("expected fractional seconds to be kept, got %v", records[0].InitialSentAt)
	}
	if records[1].InitialSentAt == nil || records[1].InitialSentAt.Hour() != 10 {
		t.Errorf("expected naive timestamp read as UTC, got %v", records[1].InitialSentAt)
	}
}

func TestParseLegacyTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantNil bool
		wantErr bool
	}{
		{name: "empty", input: "  ", wantNil: true},
		{name: "zulu", input: "2025-01-01T10:00:00Z", want: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{name: "offset converted to UTC", input: "2025-01-01T10:00:00+02:00", want: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)},
		{name: "no offset read as UTC", input: "2025-01-01T10:00:00", want: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{name: "space separated without offset", input: "2025-01-01 10:00:00.5", want: time.Date(2025, 1, 1, 10, 0, 0, 500000000, time.UTC)},
		{name: "space separated with offset", input: "2025-01-01 10:00:00-05:00", want: time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLegacyTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseLegacyInvalidJSON(t *testing.T) {
	_, _, err := ParseLegacy(strings.NewReader(`[1, 2]`))
	if !engine.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportLegacy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.UpsertSourced(ctx, testLead("d@x.com")); err != nil {
		t.Fatalf("failed to upsert lead: %v", err)
	}

	records, rejected, err := ParseLegacy(strings.NewReader(legacyFile))
	if err != nil {
		t.Fatalf("failed to parse legacy file: %v", err)
	}

	result, err := ImportLegacy(ctx, store, records, rejected, "tester")
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if len(result.Imported) != 3 || len(result.Existing) != 1 || len(result.Rejected) != 3 {
		t.Errorf("unexpected import result %+v", result)
	}

	rec, err := store.Get(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("failed to get imported lead: %v", err)
	}
	if rec.State != engine.StateFollowupSent || rec.LastFollowupSentAt == nil {
		t.Errorf("unexpected imported record %+v", rec)
	}

	action := "lead.imported"
	audit, err := store.ListAuditEntries(ctx, &action, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(audit) != 1 {
		t.Errorf("expected 1 import audit entry, got %d", len(audit))
	}
}

func TestExportJSON(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com"} {
		if _, err := store.UpsertSourced(ctx, testLead(email)); err != nil {
			t.Fatalf("failed to upsert lead: %v", err)
		}
	}

	export, err := ExportJSON(ctx, store)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "leads.json")
	if err := WriteJSONAtomic(path, export); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}

	var decoded Export
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded.Leads) != 2 || decoded.Leads["a@x.com"].State != engine.StateNew {
		t.Errorf("unexpected export %+v", decoded.Leads)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to read export dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
