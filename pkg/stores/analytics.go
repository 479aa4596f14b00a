package stores

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// CampaignStats counts leads by state and computes the response rate over
// leads that received an initial email.
func (s *SQLiteStore) CampaignStats(ctx context.Context) (*CampaignStats, error) {
	stats := &CampaignStats{ByState: make(map[engine.LeadState]int, len(engine.AllStates))}
	for _, state := range engine.AllStates {
		stats.ByState[state] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM leads GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		stats.ByState[engine.LeadState(state)] = count
		stats.TotalLeads += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state counts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(initial_sent_at),
			COUNT(last_followup_sent_at),
			COUNT(CASE WHEN state = 'REPLIED' OR reply_detected_at IS NOT NULL THEN 1 END)
		FROM leads
	`).Scan(&stats.InitialSent, &stats.FollowupsSent, &stats.Replies)
	if err != nil {
		return nil, fmt.Errorf("failed to count sends: %w", err)
	}

	if stats.InitialSent > 0 {
		rate := float64(stats.Replies) / float64(stats.InitialSent) * 100
		stats.ResponseRate = math.Round(rate*100) / 100
	}

	return stats, nil
}

// Activity returns per-day event counts from since (inclusive) through today,
// with a zero entry for days without events.
func (s *SQLiteStore) Activity(ctx context.Context, since time.Time) ([]ActivityDay, error) {
	since = since.UTC().Truncate(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(occurred_at, 1, 10) AS day, event_type, COUNT(*)
		FROM lead_events
		WHERE occurred_at >= ?
		GROUP BY day, event_type
		ORDER BY day ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]map[engine.EventType]int)
	for rows.Next() {
		var day, eventType string
		var count int
		if err := rows.Scan(&day, &eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if byDay[day] == nil {
			byDay[day] = make(map[engine.EventType]int)
		}
		byDay[day][engine.EventType(eventType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	days := []ActivityDay{}
	for d := since; !d.After(today); d = d.Add(24 * time.Hour) {
		key := d.Format("2006-01-02")
		counts := byDay[key]
		if counts == nil {
			counts = make(map[engine.EventType]int)
		}
		days = append(days, ActivityDay{Day: key, Counts: counts})
	}

	return days, nil
}
