package engine

import (
	"time"
)

// DefaultFollowupDelay is the wait after the initial email before a follow-up is due.
const DefaultFollowupDelay = 48 * time.Hour

// IsFollowupDue reports whether an INITIAL_SENT lead should receive its follow-up.
// The delay boundary is inclusive. An INITIAL_SENT record without
// initial_sent_at is reported as not due together with an integrity error.
func IsFollowupDue(r *LeadRecord, now time.Time, delay time.Duration) (bool, error) {
	if r == nil || r.State != StateInitialSent {
		return false, nil
	}
	if r.InitialSentAt == nil {
		return false, NewIntegrityError("initial_sent_at missing on INITIAL_SENT lead", nil).
			WithLead(r.Email).WithOperation("followup_policy")
	}
	if r.ReplyDetectedAt != nil {
		return false, nil
	}
	return now.Sub(*r.InitialSentAt) >= delay, nil
}

// IsCloseDue reports whether a FOLLOWUP_SENT lead has waited out the
// observation window. A zero window disables closing.
func IsCloseDue(r *LeadRecord, now time.Time, window time.Duration) (bool, error) {
	if r == nil || r.State != StateFollowupSent || window <= 0 {
		return false, nil
	}
	if r.LastFollowupSentAt == nil {
		return false, NewIntegrityError("last_followup_sent_at missing on FOLLOWUP_SENT lead", nil).
			WithLead(r.Email).WithOperation("close_policy")
	}
	return now.Sub(*r.LastFollowupSentAt) >= window, nil
}

// ReplyWindowStart returns the instant after which a reply counts for the
// record's current state.
func ReplyWindowStart(r *LeadRecord) (time.Time, error) {
	switch r.State {
	case StateInitialSent:
		if r.InitialSentAt == nil {
			return time.Time{}, NewIntegrityError("initial_sent_at missing on INITIAL_SENT lead", nil).
				WithLead(r.Email).WithOperation("reply_check")
		}
		return *r.InitialSentAt, nil
	case StateFollowupSent:
		if r.LastFollowupSentAt == nil {
			return time.Time{}, NewIntegrityError("last_followup_sent_at missing on FOLLOWUP_SENT lead", nil).
				WithLead(r.Email).WithOperation("reply_check")
		}
		return *r.LastFollowupSentAt, nil
	default:
		return time.Time{}, NewIntegrityError("no reply window for state "+string(r.State), nil).
			WithLead(r.Email).WithOperation("reply_check")
	}
}
