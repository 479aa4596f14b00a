package stores

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

type fixedSource struct {
	leads []engine.Lead
}

func (s *fixedSource) FetchLeads(context.Context) ([]engine.Lead, error) {
	return s.leads, nil
}

type plainCrafter struct{}

func (plainCrafter) Craft(_ context.Context, lead engine.Lead, stage engine.Stage) (engine.Content, error) {
	return engine.Content{
		Subject: fmt.Sprintf("%s for %s", stage, lead.Email),
		Body:    "Hello",
	}, nil
}

// countingDeliverer is shared by every orchestrator in a test.
type countingDeliverer struct {
	mu    sync.Mutex
	sends map[string]int
}

func newCountingDeliverer() *countingDeliverer {
	return &countingDeliverer{sends: make(map[string]int)}
}

func (d *countingDeliverer) Send(_ context.Context, lead engine.Lead, _ engine.Content) (*engine.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := engine.NormalizeEmail(lead.Email)
	d.sends[email]++
	return &engine.Receipt{
		MessageID: fmt.Sprintf("<%s-%d@test>", email, d.sends[email]),
		SentAt:    time.Now().UTC(),
	}, nil
}

func (d *countingDeliverer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.sends {
		n += c
	}
	return n
}

type silentReplies struct{}

func (silentReplies) HasRepliedSince(context.Context, engine.Lead, time.Time) (bool, error) {
	return false, nil
}

// openSharedStore opens another connection pool on an existing database file.
func openSharedStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: path, BusyTimeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConcurrentOrchestratorsSendOncePerLead(t *testing.T) {
	const leadCount = 20
	leads := make([]engine.Lead, 0, leadCount)
	for i := 0; i < leadCount; i++ {
		leads = append(leads, testLead(fmt.Sprintf("lead%02d@example.com", i)))
	}
	source := &fixedSource{leads: leads}

	tests := []struct {
		name          string
		orchestrators int
	}{
		{name: "two processes", orchestrators: 2},
		{name: "four processes", orchestrators: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "leadflow.db")
			seed := openSharedStore(t, dbPath)
			if err := seed.Migrate(context.Background()); err != nil {
				t.Fatalf("failed to migrate store: %v", err)
			}
			deliverer := newCountingDeliverer()

			pools := []*SQLiteStore{seed}
			for i := 1; i < tt.orchestrators; i++ {
				pools = append(pools, openSharedStore(t, dbPath))
			}

			opts := engine.DefaultOptions()
			opts.MaxParallel = 4
			opts.PortTimeout = 10 * time.Second

			var wg sync.WaitGroup
			errs := make([]error, len(pools))
			for i, store := range pools {
				o, err := engine.NewOrchestrator(store, source, plainCrafter{}, deliverer, silentReplies{}, opts)
				if err != nil {
					t.Fatalf("failed to create orchestrator: %v", err)
				}
				wg.Add(1)
				go func(i int, o *engine.Orchestrator) {
					defer wg.Done()
					_, errs[i] = o.Run(context.Background())
				}(i, o)
			}
			wg.Wait()

			for i, err := range errs {
				if err != nil {
					t.Errorf("orchestrator %d failed: %v", i, err)
				}
			}

			for _, lead := range leads {
				email := engine.NormalizeEmail(lead.Email)
				if got := deliverer.sends[email]; got != 1 {
					t.Errorf("%s: expected exactly one send, got %d", email, got)
				}
				rec, err := seed.Get(context.Background(), email)
				if err != nil {
					t.Fatalf("failed to get %s: %v", email, err)
				}
				if rec.State != engine.StateInitialSent {
					t.Errorf("%s: expected INITIAL_SENT, got %s", email, rec.State)
				}
				if rec.ClaimToken != "" {
					t.Errorf("%s: claim not released", email)
				}
			}
			if deliverer.total() != leadCount {
				t.Errorf("expected %d sends, got %d", leadCount, deliverer.total())
			}
		})
	}
}

func TestStaleClaimMovesLeadToFailed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := store.UpsertSourced(ctx, testLead("stale@example.com")); err != nil {
		t.Fatalf("failed to upsert lead: %v", err)
	}
	// A previous run claimed the lead and exited before recording the outcome.
	if _, err := store.Claim(ctx, "stale@example.com", engine.StateNew, "crashed-run", now.Add(-2*time.Hour), time.Hour); err != nil {
		t.Fatalf("failed to claim lead: %v", err)
	}

	deliverer := newCountingDeliverer()
	opts := engine.DefaultOptions()
	opts.ClaimTTL = time.Hour
	o, err := engine.NewOrchestrator(store, &fixedSource{leads: []engine.Lead{testLead("stale@example.com")}},
		plainCrafter{}, deliverer, silentReplies{}, opts,
		engine.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}

	summary, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec, err := store.Get(ctx, "stale@example.com")
	if err != nil {
		t.Fatalf("failed to get lead: %v", err)
	}
	if rec.State != engine.StateFailed {
		t.Fatalf("expected FAILED, got %s", rec.State)
	}
	if !strings.Contains(rec.LastError, "dispatch outcome unknown") {
		t.Errorf("expected unknown outcome error, got %q", rec.LastError)
	}
	if deliverer.total() != 0 {
		t.Errorf("lead with unknown outcome was resent %d times", deliverer.total())
	}
	if summary.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", summary)
	}
}
