// Package stores provides the durable lead state store for leadflow.
// It is a single SQLite file in WAL mode with synchronous commits, holding
// lead records, their event log, re-open history, invocation records and
// an audit trail. Every state change is a compare-and-set on the lead's
// current state, so overlapping invocations cannot both dispatch an email.
package stores
