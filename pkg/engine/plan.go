package engine

import (
	"sort"
	"time"
)

// Action is the decision a pass would take for one lead.
type Action string

const (
	ActionSendInitial  Action = "send_initial"
	ActionCheckReply   Action = "check_reply"
	ActionSendFollowup Action = "send_followup"
	ActionClose        Action = "close"
	ActionSkip         Action = "skip"
	ActionNone         Action = "none"
)

// PlannedAction describes what the next pass would do for a lead.
type PlannedAction struct {
	Email  string    `json:"email"`
	State  LeadState `json:"state"`
	Action Action    `json:"action"`

	// Then is the action taken if the reply check finds no reply.
	Then Action `json:"then,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Plan computes the actions a pass would take without calling any port or
// writing to the store. leads are the rows from the source; records are the
// current store contents. Leads not yet in the store are planned as NEW;
// leads already stored are planned from their record only.
func Plan(leads []Lead, records []*LeadRecord, now time.Time, opts Options) []PlannedAction {
	byEmail := make(map[string]*LeadRecord, len(records))
	for _, r := range records {
		byEmail[r.Email] = r
	}

	seen := make(map[string]bool, len(leads))
	var actions []PlannedAction
	for _, lead := range leads {
		email := lead.Identity()
		if seen[email] {
			continue
		}
		seen[email] = true
		if _, ok := byEmail[email]; ok {
			continue
		}
		pa := PlannedAction{Email: email, State: StateNew, Action: ActionSendInitial}
		if err := ValidateLead(lead); err != nil {
			pa.Action = ActionSkip
			pa.Reason = err.Error()
		}
		actions = append(actions, pa)
	}

	for _, r := range records {
		actions = append(actions, planRecord(r, now, opts))
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Email < actions[j].Email
	})
	return actions
}

func planRecord(r *LeadRecord, now time.Time, opts Options) PlannedAction {
	pa := PlannedAction{Email: r.Email, State: r.State, Action: ActionNone}

	if r.ClaimToken != "" {
		pa.Reason = "dispatch in flight"
		return pa
	}

	switch r.State {
	case StateNew:
		pa.Action = ActionSendInitial
		if err := ValidateLead(r.Lead()); err != nil {
			pa.Action = ActionSkip
			pa.Reason = err.Error()
		}
	case StateInitialSent:
		pa.Action = ActionCheckReply
		due, err := IsFollowupDue(r, now, opts.FollowupDelay)
		if err != nil {
			pa.Action = ActionNone
			pa.Reason = err.Error()
			return pa
		}
		if due {
			pa.State = StateFollowupDue
			pa.Then = ActionSendFollowup
		}
	case StateFollowupSent:
		pa.Action = ActionCheckReply
		due, err := IsCloseDue(r, now, opts.CloseAfter)
		if err != nil {
			pa.Action = ActionNone
			pa.Reason = err.Error()
			return pa
		}
		if due {
			pa.Then = ActionClose
		}
	default:
		pa.Reason = "terminal"
	}
	return pa
}
