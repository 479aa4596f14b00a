// Package sources implements engine.LeadSource over a CSV file and a Google
// Sheets range.
//
// Both sources produce leads in source order and share the same row rules:
// a row with an empty email is dropped with a warning, while a malformed but
// non-empty email is passed through so the orchestrator records the lead as
// SKIPPED. Required attributes are enforced by screening, not here.
package sources
