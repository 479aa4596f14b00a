// Package report renders command output as lipgloss tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/stores"
)

const timeFormat = "2006-01-02 15:04"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	stateColors = map[engine.LeadState]lipgloss.Color{
		engine.StateReplied:     "#50C878",
		engine.StateFailed:      "#FF6B6B",
		engine.StateSkipped:     "#AAAAAA",
		engine.StateFollowupDue: "#F5A623",
	}
)

// Renderer writes reports to w, as tables or as indented JSON.
type Renderer struct {
	w      io.Writer
	asJSON bool
}

// New creates a renderer.
func New(w io.Writer, asJSON bool) *Renderer {
	return &Renderer{w: w, asJSON: asJSON}
}

func (r *Renderer) writeJSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) println(s string) error {
	_, err := fmt.Fprintln(r.w, s)
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func stateCell(state engine.LeadState) string {
	if c, ok := stateColors[state]; ok {
		return lipgloss.NewStyle().Foreground(c).Render(string(state))
	}
	return string(state)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunSummary renders the outcome of one pass.
func (r *Renderer) RunSummary(s *engine.RunSummary) error {
	if r.asJSON {
		return r.writeJSON(s)
	}

	t := newTable("outcome", "count").
		Row("sourced", strconv.Itoa(s.Sourced)).
		Row("processed", strconv.Itoa(s.Processed)).
		Row("initial sent", strconv.Itoa(s.InitialSent)).
		Row("follow-ups sent", strconv.Itoa(s.FollowupsSent)).
		Row("replied", strconv.Itoa(s.Replied)).
		Row("closed", strconv.Itoa(s.Closed)).
		Row("skipped", strconv.Itoa(s.Skipped)).
		Row("failed", strconv.Itoa(s.Failed)).
		Row("retried", strconv.Itoa(s.Retried)).
		Row("conflicts", strconv.Itoa(s.Conflicts)).
		Row("integrity errors", strconv.Itoa(s.Integrity)).
		Row("unchanged", strconv.Itoa(s.Unchanged)).
		Row("pending", strconv.Itoa(s.Pending))

	lines := []string{
		titleStyle.Render("Run " + s.RunID),
		t.String(),
	}
	if s.SourceError != "" {
		lines = append(lines, mutedStyle.Render("source error: "+s.SourceError))
	}
	return r.println(strings.Join(lines, "\n"))
}

// Plan renders the actions of a dry run.
func (r *Renderer) Plan(actions []engine.PlannedAction) error {
	if r.asJSON {
		return r.writeJSON(actions)
	}
	if len(actions) == 0 {
		return r.println(mutedStyle.Render("No leads."))
	}

	t := newTable("email", "state", "action", "then", "reason")
	for _, a := range actions {
		t.Row(a.Email, stateCell(a.State), string(a.Action), orDash(string(a.Then)), orDash(a.Reason))
	}
	return r.println(titleStyle.Render("Dry run") + "\n" + t.String())
}

// Leads renders lead records with their displayed state, which includes the
// derived FOLLOWUP_DUE state.
func (r *Renderer) Leads(records []*engine.LeadRecord, now time.Time, delay time.Duration) error {
	if r.asJSON {
		type leadView struct {
			*engine.LeadRecord
			DisplayState engine.LeadState `json:"display_state"`
		}
		views := make([]leadView, 0, len(records))
		for _, rec := range records {
			views = append(views, leadView{LeadRecord: rec, DisplayState: rec.DisplayState(now, delay)})
		}
		return r.writeJSON(views)
	}
	if len(records) == 0 {
		return r.println(mutedStyle.Render("No leads."))
	}

	t := newTable("email", "name", "company", "state", "initial sent", "follow-up sent", "errors")
	for _, rec := range records {
		t.Row(
			rec.Email,
			orDash(rec.Attributes.FullName()),
			orDash(rec.Attributes.Company),
			stateCell(rec.DisplayState(now, delay)),
			formatTime(rec.InitialSentAt),
			formatTime(rec.LastFollowupSentAt),
			strconv.Itoa(rec.ErrorCount),
		)
	}
	return r.println(t.String() + "\n" + mutedStyle.Render(fmt.Sprintf("%d leads", len(records))))
}

// History renders a lead's current record, its events, its re-open
// snapshots and the operator actions audited for it.
func (r *Renderer) History(rec *engine.LeadRecord, events []*stores.LeadEvent, archived []*stores.HistoryEntry, audit []*stores.AuditEntry) error {
	if r.asJSON {
		return r.writeJSON(struct {
			Lead    *engine.LeadRecord     `json:"lead"`
			Events  []*stores.LeadEvent    `json:"events"`
			History []*stores.HistoryEntry `json:"history"`
			Audit   []*stores.AuditEntry   `json:"audit"`
		}{rec, events, archived, audit})
	}

	lines := []string{titleStyle.Render(rec.Email) + " " + stateCell(rec.State)}
	if rec.LastError != "" {
		lines = append(lines, mutedStyle.Render("last error: "+rec.LastError))
	}

	if len(events) > 0 {
		t := newTable("time", "event", "from", "to", "run", "detail")
		for _, e := range events {
			detail := e.Detail
			if detail == "" {
				detail = e.Subject
			}
			t.Row(
				e.OccurredAt.Local().Format(timeFormat),
				string(e.Type),
				string(e.FromState),
				string(e.ToState),
				shortID(e.RunID),
				orDash(detail),
			)
		}
		lines = append(lines, t.String())
	} else {
		lines = append(lines, mutedStyle.Render("No events."))
	}

	if len(archived) > 0 {
		t := newTable("archived", "state", "actor", "reason")
		for _, h := range archived {
			state := "-"
			if h.Snapshot != nil {
				state = string(h.Snapshot.State)
			}
			t.Row(h.ArchivedAt.Local().Format(timeFormat), state, h.Actor, orDash(h.Reason))
		}
		lines = append(lines, titleStyle.Render("Re-opened"), t.String())
	}

	if len(audit) > 0 {
		t := newTable("time", "action", "actor", "details")
		for _, e := range audit {
			details := "-"
			if e.Details != nil {
				details = *e.Details
			}
			t.Row(e.Timestamp.Local().Format(timeFormat), e.Action, e.Actor, details)
		}
		lines = append(lines, titleStyle.Render("Audit"), t.String())
	}

	return r.println(strings.Join(lines, "\n"))
}

// Runs renders recorded invocations, newest first.
func (r *Renderer) Runs(runs []*stores.Run) error {
	if r.asJSON {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views)
	}
	if len(runs) == 0 {
		return r.println(mutedStyle.Render("No runs."))
	}

	t := newTable("run", "status", "started", "duration", "sent", "failed")
	for _, run := range runs {
		sent, failed, duration := "-", "-", "-"
		if s := parseRunSummary(run); s != nil {
			sent = strconv.Itoa(s.InitialSent + s.FollowupsSent)
			failed = strconv.Itoa(s.Failed)
		}
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		t.Row(shortID(run.ID), runStatusCell(run.Status), run.StartedAt.Local().Format(timeFormat), duration, sent, failed)
	}
	return r.println(t.String() + "\n" + mutedStyle.Render(fmt.Sprintf("%d runs", len(runs))))
}

// Run renders one invocation with its recorded summary.
func (r *Renderer) Run(run *stores.Run) error {
	if r.asJSON {
		return r.writeJSON(newRunView(run))
	}

	lines := []string{
		titleStyle.Render("Run "+run.ID) + " " + runStatusCell(run.Status),
		mutedStyle.Render("started " + run.StartedAt.Local().Format(timeFormat) + ", completed " + formatTime(run.CompletedAt)),
	}
	if run.Error != nil {
		lines = append(lines, mutedStyle.Render("error: "+*run.Error))
	}
	if err := r.println(strings.Join(lines, "\n")); err != nil {
		return err
	}

	s := parseRunSummary(run)
	if s == nil {
		return r.println(mutedStyle.Render("No summary recorded."))
	}
	return r.RunSummary(s)
}

// runView embeds the stored summary as JSON instead of a quoted string.
type runView struct {
	*stores.Run
	Summary json.RawMessage `json:"summary"`
}

func newRunView(run *stores.Run) runView {
	summary := json.RawMessage(run.Summary)
	if !json.Valid(summary) {
		summary = json.RawMessage("null")
	}
	return runView{Run: run, Summary: summary}
}

// parseRunSummary decodes the stored summary. Runs that never finished
// carry an empty object and yield nil.
func parseRunSummary(run *stores.Run) *engine.RunSummary {
	var s engine.RunSummary
	if err := json.Unmarshal([]byte(run.Summary), &s); err != nil || s.RunID == "" {
		return nil
	}
	return &s
}

func runStatusCell(status stores.RunStatus) string {
	switch status {
	case stores.RunStatusCompleted:
		return lipgloss.NewStyle().Foreground(stateColors[engine.StateReplied]).Render(string(status))
	case stores.RunStatusFailedLeads, stores.RunStatusAborted:
		return lipgloss.NewStyle().Foreground(stateColors[engine.StateFailed]).Render(string(status))
	default:
		return string(status)
	}
}

// Campaign renders overall statistics and daily activity.
func (r *Renderer) Campaign(stats *stores.CampaignStats, activity []stores.ActivityDay, days int) error {
	if r.asJSON {
		return r.writeJSON(struct {
			Stats    *stores.CampaignStats `json:"stats"`
			Days     int                   `json:"days"`
			Activity []stores.ActivityDay  `json:"activity"`
		}{stats, days, activity})
	}

	overview := newTable("metric", "value").
		Row("total leads", strconv.Itoa(stats.TotalLeads)).
		Row("initial emails sent", strconv.Itoa(stats.InitialSent)).
		Row("follow-ups sent", strconv.Itoa(stats.FollowupsSent)).
		Row("replies", strconv.Itoa(stats.Replies)).
		Row("response rate", fmt.Sprintf("%.1f%%", stats.ResponseRate))

	states := newTable("state", "leads")
	for _, s := range engine.AllStates {
		states.Row(stateCell(s), strconv.Itoa(stats.ByState[s]))
	}

	lines := []string{
		titleStyle.Render("Campaign"),
		lipgloss.JoinHorizontal(lipgloss.Top, overview.String(), "  ", states.String()),
		titleStyle.Render(fmt.Sprintf("Activity (last %d days)", days)),
	}

	if len(activity) == 0 {
		lines = append(lines, mutedStyle.Render("No activity."))
		return r.println(strings.Join(lines, "\n"))
	}

	types := activityTypes(activity)
	headers := append([]string{"day"}, types...)
	t := newTable(headers...)
	for _, day := range activity {
		row := []string{day.Day}
		for _, typ := range types {
			row = append(row, strconv.Itoa(day.Counts[engine.EventType(typ)]))
		}
		t.Row(row...)
	}
	lines = append(lines, t.String())
	return r.println(strings.Join(lines, "\n"))
}

// Import renders the result of a legacy import.
func (r *Renderer) Import(result *stores.ImportResult) error {
	if r.asJSON {
		return r.writeJSON(result)
	}

	lines := []string{
		fmt.Sprintf("imported: %d, already present: %d, rejected: %d",
			len(result.Imported), len(result.Existing), len(result.Rejected)),
	}
	if len(result.Rejected) > 0 {
		t := newTable("email", "reason")
		for _, rej := range result.Rejected {
			t.Row(orDash(rej.Email), rej.Reason)
		}
		lines = append(lines, t.String())
	}
	return r.println(strings.Join(lines, "\n"))
}

// Message renders a one-line result, or {"message": ...} in JSON mode.
func (r *Renderer) Message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r.asJSON {
		return r.writeJSON(map[string]string{"message": msg})
	}
	return r.println(msg)
}

func activityTypes(activity []stores.ActivityDay) []string {
	seen := make(map[string]bool)
	for _, day := range activity {
		for typ := range day.Counts {
			seen[string(typ)] = true
		}
	}
	types := make([]string, 0, len(seen))
	for typ := range seen {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}
