// Package engine provides the lead state machine, the follow-up policy and
// the orchestrator for leadflow.
//
// # Overview
//
// leadflow sends each sourced lead one initial email and, if no reply has
// arrived after the follow-up delay, one follow-up. Every invocation is a
// single reconciliation pass:
//
//  1. Source - Fetch the lead list and upsert new identities (LeadSource)
//  2. Decide - Take at most one decision per lead from its stored state
//  3. Act - Craft and deliver an email, or record a reply (ContentCrafter,
//     Deliverer, ReplyChecker)
//  4. Record - Persist the new state with a compare-and-set (Store)
//
// The pass is idempotent: rerunning it with unchanged inputs sends nothing
// and writes nothing.
//
// # State Machine
//
//	NEW -> INITIAL_SENT -> REPLIED
//	                    -> FOLLOWUP_SENT -> REPLIED
//	                                     -> CLOSED
//	NEW -> SKIPPED
//	any non-terminal -> FAILED
//	FAILED, SKIPPED -> NEW (re-open, operator only)
//
// FOLLOWUP_DUE is derived from INITIAL_SENT and the clock and is never
// stored. A detected reply always wins over a due follow-up.
//
// # Dispatch Safety
//
// Before a port with external effects is called, the orchestrator writes a
// claim token on the lead. The state change that records the send only
// succeeds for the holder of the claim, so two overlapping invocations never
// both send. A claim older than the claim TTL means an earlier invocation
// died between sending and recording; such a lead moves to FAILED rather
// than risking a second email.
//
// # Error Classification
//
// Port errors are classified for the per-lead decision:
//
//   - Transient, Throttled: Lead stays in its state and is retried next pass
//   - Validation: A NEW lead is SKIPPED
//   - Permanent: Lead moves to FAILED
//   - Conflict: Another invocation changed the lead; nothing is done
//   - Integrity: Stored record is inconsistent; lead is left untouched
//
// Errors without a classification are treated as transient.
//
// # Example Usage
//
//	orch, err := engine.NewOrchestrator(store, source, crafter, deliverer, replies,
//	    engine.DefaultOptions(), engine.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	summary, err := orch.Run(ctx)
//	if err != nil {
//	    // aborted: store unavailable or cancelled
//	}
//	if summary.HasFailures() {
//	    // at least one lead moved to FAILED
//	}
package engine
