package engine_test

import (
	"fmt"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Example_followupPolicy shows how the follow-up policy and the derived
// FOLLOWUP_DUE state relate to a stored record.
func Example_followupPolicy() {
	sent := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := &engine.LeadRecord{
		Email:         "jane@example.com",
		State:         engine.StateInitialSent,
		InitialSentAt: &sent,
	}

	for _, elapsed := range []time.Duration{24 * time.Hour, 48 * time.Hour} {
		now := sent.Add(elapsed)
		due, _ := engine.IsFollowupDue(rec, now, engine.DefaultFollowupDelay)
		fmt.Printf("after %s: due=%v display=%s\n", elapsed, due, rec.DisplayState(now, engine.DefaultFollowupDelay))
	}
	// Output:
	// after 24h0m0s: due=false display=INITIAL_SENT
	// after 48h0m0s: due=true display=FOLLOWUP_DUE
}

// ExampleCanTransition lists the edges out of INITIAL_SENT.
func ExampleCanTransition() {
	for _, to := range engine.AllStates {
		if engine.CanTransition(engine.StateInitialSent, to) {
			fmt.Println(to)
		}
	}
	// Output:
	// FOLLOWUP_SENT
	// REPLIED
	// FAILED
}
