// Package content renders the outreach emails.
//
// Two crafters implement engine.ContentCrafter:
//
//   - TemplateCrafter renders text/template subject and body pairs. Built-in
//     templates are used unless override files are configured.
//   - StarlarkCrafter calls craft(lead, stage) in a Starlark script and reads
//     subject and body from the returned dict or struct.
//
// Both are deterministic for a given lead and stage. An empty subject or body
// is a permanent CONTENT_INVALID error; script failures and timeouts are
// transient so the lead is retried on the next run.
package content
